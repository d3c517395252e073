package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron"
)

// TriggerRegistrar owns the recurring daily trigger. Install replaces
// any previously installed entry, so exactly one fires at a time.
type TriggerRegistrar interface {
	Install(hour, minute int, fn func()) error
	Stop()
}

type cronRegistrar struct {
	mu sync.Mutex
	c  *cron.Cron
}

func NewCronRegistrar() TriggerRegistrar {
	return &cronRegistrar{}
}

func (r *cronRegistrar) Install(hour, minute int, fn func()) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("posting hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("posting minute %d out of range", minute)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The cron library has no entry removal, so reinstalling swaps
	// the whole runner.
	if r.c != nil {
		r.c.Stop()
	}

	c := cron.New()
	if err := c.AddFunc(fmt.Sprintf("0 %d %d * * *", minute, hour), fn); err != nil {
		return err
	}
	c.Start()
	r.c = c
	return nil
}

func (r *cronRegistrar) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		r.c.Stop()
		r.c = nil
	}
}
