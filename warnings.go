package itspc

import (
	"fmt"
)

// warningList collects human-readable problems in the order of their
// first appearance; repeated messages are recorded once.
type warningList struct {
	list []string
	seen map[string]struct{}
}

func (w *warningList) addf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if _, ok := w.seen[msg]; ok {
		return
	}
	if w.seen == nil {
		w.seen = make(map[string]struct{})
	}
	w.seen[msg] = struct{}{}
	w.list = append(w.list, msg)
}

func (w *warningList) add(list []string) {
	for _, msg := range list {
		w.addf("%s", msg)
	}
}
