package explore

import "log"

// LogObserver prints state changes and the final outcome.
type LogObserver struct {
	Logger *log.Logger
	RunID  string
}

func (o LogObserver) ObserveStep(ev StepEvent) {
	if o.Logger == nil || ev.Prev == ev.State {
		return
	}
	o.Logger.Printf("run=%s step=%d %s -> %s pos=%v known=%d path_len=%d",
		o.RunID, ev.Step, ev.Prev, ev.State, ev.Pos, ev.Known, ev.PathLen)
}

func (o LogObserver) ObserveResult(res Result) {
	if o.Logger == nil {
		return
	}
	o.Logger.Printf("run=%s finished state=%s steps=%d visited=%d known=%d",
		o.RunID, res.State, res.Steps, len(res.History), res.Known)
}
