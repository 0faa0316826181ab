package search

// Input is an editable single-line query with a cursor, measured in runes.
type Input struct {
	query     []rune
	cursorPos int
}

func (s *Input) String() string {
	return string(s.query)
}

func (s *Input) Cursor() int {
	return s.cursorPos
}

// SetQuery sets the query and moves the cursor to the end.
func (s *Input) SetQuery(query string) {
	s.query = []rune(query)
	s.cursorPos = len(s.query)
}

func (s *Input) Clear() {
	s.query = nil
	s.cursorPos = 0
}

// InsertChar inserts a character at the cursor position
func (s *Input) InsertChar(ch rune) {
	s.query = append(s.query, 0)
	copy(s.query[s.cursorPos+1:], s.query[s.cursorPos:])
	s.query[s.cursorPos] = ch
	s.cursorPos++
}

// DeleteChar deletes the character before the cursor (backspace)
func (s *Input) DeleteChar() {
	if s.cursorPos > 0 {
		s.query = append(s.query[:s.cursorPos-1], s.query[s.cursorPos:]...)
		s.cursorPos--
	}
}

// DeleteCharForward deletes the character at the cursor (delete)
func (s *Input) DeleteCharForward() {
	if s.cursorPos < len(s.query) {
		s.query = append(s.query[:s.cursorPos], s.query[s.cursorPos+1:]...)
	}
}

func (s *Input) MoveCursorLeft() {
	if s.cursorPos > 0 {
		s.cursorPos--
	}
}

func (s *Input) MoveCursorRight() {
	if s.cursorPos < len(s.query) {
		s.cursorPos++
	}
}

// MoveCursorStart moves cursor to start (Ctrl+A)
func (s *Input) MoveCursorStart() {
	s.cursorPos = 0
}

// MoveCursorEnd moves cursor to end (Ctrl+E)
func (s *Input) MoveCursorEnd() {
	s.cursorPos = len(s.query)
}

// DeleteToEnd deletes from cursor to end (Ctrl+K)
func (s *Input) DeleteToEnd() {
	s.query = s.query[:s.cursorPos]
}

// DeleteWord deletes the word before cursor (Ctrl+W)
func (s *Input) DeleteWord() {
	if s.cursorPos == 0 {
		return
	}

	start := s.cursorPos
	for start > 0 && s.query[start-1] == ' ' {
		start--
	}
	for start > 0 && s.query[start-1] != ' ' {
		start--
	}

	s.query = append(s.query[:start], s.query[s.cursorPos:]...)
	s.cursorPos = start
}
