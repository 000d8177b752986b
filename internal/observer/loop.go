package observer

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Sink stores finished rounds. storage.ResultLog satisfies it.
type Sink interface {
	Append(v any) error
}

// Loop runs rounds and appends each record to sink as soon as it completes.
// rounds <= 0 runs until ctx is done. interval is the pause between the end
// of one round and the start of the next. notify, when set, sees every
// persisted record. It returns the number of persisted rounds.
func (o *Observer) Loop(ctx context.Context, rounds int, interval time.Duration, sink Sink, notify func(SampleRecord)) (int, error) {
	done := 0
	for rounds <= 0 || done < rounds {
		if ctx.Err() != nil {
			return done, nil
		}
		rec := o.RunRound(ctx)
		if ctx.Err() != nil {
			// interrupted mid-round: the record is partial, keep it out of the log
			return done, nil
		}
		if err := sink.Append(rec); err != nil {
			return done, errors.Wrap(err, "persist round")
		}
		done++
		if notify != nil {
			notify(rec)
		}

		if rounds > 0 && done == rounds {
			break
		}
		select {
		case <-ctx.Done():
			return done, nil
		case <-time.After(interval):
		}
	}
	return done, nil
}
