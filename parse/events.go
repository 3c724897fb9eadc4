package parse

// Events holds the hooks the engine fires as a parse progresses. Consumers
// (navigation panels, notification banners, visit classification) subscribe
// before Parse runs. Hooks fire synchronously, in registration order.
type Events struct {
	commentsBuilt []func(*Result)
	sectionsBuilt []func(*Result)
	classified    []func(*Result)
}

// OnCommentsBuilt fires after the comment list and identities exist.
func (e *Events) OnCommentsBuilt(fn func(*Result)) {
	e.commentsBuilt = append(e.commentsBuilt, fn)
}

// OnSectionsBuilt fires after the section hierarchy and reply tree exist.
func (e *Events) OnSectionsBuilt(fn func(*Result)) {
	e.sectionsBuilt = append(e.sectionsBuilt, fn)
}

// OnClassified fires after visit classification has set IsNew/IsSeen.
// The classifier calls FireClassified; parsing alone never does.
func (e *Events) OnClassified(fn func(*Result)) {
	e.classified = append(e.classified, fn)
}

// FireClassified notifies subscribers that IsNew/IsSeen flags are final.
func (e *Events) FireClassified(r *Result) {
	for _, fn := range e.classified {
		fn(r)
	}
}

func (e *Events) fireCommentsBuilt(r *Result) {
	for _, fn := range e.commentsBuilt {
		fn(r)
	}
}

func (e *Events) fireSectionsBuilt(r *Result) {
	for _, fn := range e.sectionsBuilt {
		fn(r)
	}
}
