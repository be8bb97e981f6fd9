package script

import "sync"

// Queue hands out script commands one at a time. Commands added to the top
// go into a priority lane that is drained, in insertion order, before the
// script body.
type Queue struct {
	mu   sync.Mutex
	lane []Command
	body []Command
	line int
}

func NewQueue() *Queue { return &Queue{} }

// Load appends the commands of source to the script body.
func (q *Queue) Load(source string) int {
	cmds := Split(source)
	q.mu.Lock()
	q.body = append(q.body, cmds...)
	q.mu.Unlock()
	return len(cmds)
}

// Append adds a single command to the end of the body.
func (q *Queue) Append(text string) {
	q.mu.Lock()
	q.body = append(q.body, Command{Text: text, Kind: Classify(text)})
	q.mu.Unlock()
}

// Next pops the next command; lane first. An empty queue yields Skip().
func (q *Queue) Next() Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.lane) > 0 {
		cmd := q.lane[0]
		q.lane[0] = Command{}
		q.lane = q.lane[1:]
		return cmd
	}
	if len(q.body) > 0 {
		cmd := q.body[0]
		q.body[0] = Command{}
		q.body = q.body[1:]
		if cmd.Line > 0 {
			q.line = cmd.Line
		}
		return cmd
	}
	return Skip()
}

// AddToTop queues text ahead of the script body.
func (q *Queue) AddToTop(text string, kind Kind) {
	q.AddManyToTop([]string{text}, kind)
}

// AddManyToTop queues texts ahead of the script body, keeping their order.
func (q *Queue) AddManyToTop(texts []string, kind Kind) {
	if len(texts) == 0 {
		return
	}
	q.mu.Lock()
	for _, t := range texts {
		q.lane = append(q.lane, Command{Text: t, Kind: refine(t, kind)})
	}
	q.mu.Unlock()
}

// refine keeps editor and run semantics for injected text so a control can
// never smuggle a host command to the engine.
func refine(text string, kind Kind) Kind {
	switch k := Classify(text); k {
	case EditorCommand, RunCommand:
		return k
	}
	return kind
}

// Line is the source line of the last body command handed out.
func (q *Queue) Line() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.line
}

// HasPriority reports whether commands added to the top are waiting.
func (q *Queue) HasPriority() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lane) > 0
}

func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lane) + len(q.body)
}

// Clear drops every queued command and resets the cursor.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.lane, q.body, q.line = nil, nil, 0
	q.mu.Unlock()
}
