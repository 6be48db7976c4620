package assessment

// Split separates a selected question into what the student may read and
// what only the server may read.
func Split(sel Selected) ([]PublicOption, SecureKey) {
	q := sel.Question
	public := make([]PublicOption, 0, len(q.Options))
	key := SecureKey{
		CorrectOptionID:       q.CorrectOptionID,
		Explanation:           q.Explanation,
		OptionFeedback:        make(map[string]string, len(q.Options)),
		OptionIDs:             make([]string, 0, len(q.Options)),
		SelectedQuestionIndex: sel.Index,
	}
	for _, o := range q.Options {
		public = append(public, PublicOption{ID: o.ID, Text: o.Text})
		key.OptionIDs = append(key.OptionIDs, o.ID)
		if o.Feedback != "" {
			key.OptionFeedback[o.ID] = o.Feedback
		}
	}
	return public, key
}
