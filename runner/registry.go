package runner

import (
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
)

// RecentTTL is how long a finished run stays listed by Recent.
const RecentTTL = 10 * time.Minute

// Info is a snapshot of one run.
type Info struct {
	ID       string        `json:"id" yaml:"id"`
	Name     string        `json:"name" yaml:"name"`
	Status   Status        `json:"status" yaml:"status"`
	Reason   Reason        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Points   int           `json:"points" yaml:"points"`
	Loss     float64       `json:"loss" yaml:"loss"`
	Failures int           `json:"failures" yaml:"failures"`
	Started  time.Time     `json:"started" yaml:"started"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

type tracked interface {
	ID() string
	Info() Info
}

// Active runs are held until they finish; finished ones are kept as
// snapshots for RecentTTL.
var (
	active = cache.New(cache.NoExpiration, 0)
	recent = cache.New(RecentTTL, time.Minute)
)

func register(t tracked) {
	active.Set(t.ID(), t, cache.NoExpiration)
}

func deregister(t tracked) {
	active.Delete(t.ID())
	recent.SetDefault(t.ID(), t.Info())
}

// Active returns a snapshot of every running run, oldest first.
func Active() []Info {
	items := active.Items()

	out := make([]Info, 0, len(items))
	for _, item := range items {
		if t, ok := item.Object.(tracked); ok {
			out = append(out, t.Info())
		}
	}

	sortInfos(out)

	return out
}

// Recent returns the final snapshot of every run finished within RecentTTL,
// oldest first.
func Recent() []Info {
	items := recent.Items()

	out := make([]Info, 0, len(items))
	for _, item := range items {
		if info, ok := item.Object.(Info); ok {
			out = append(out, info)
		}
	}

	sortInfos(out)

	return out
}

// Lookup returns the snapshot of a running or recently finished run.
func Lookup(id string) (Info, bool) {
	if v, ok := active.Get(id); ok {
		if t, ok := v.(tracked); ok {
			return t.Info(), true
		}
	}

	if v, ok := recent.Get(id); ok {
		info, ok := v.(Info)

		return info, ok
	}

	return Info{}, false
}

func sortInfos(infos []Info) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Started.Equal(infos[j].Started) {
			return infos[i].Started.Before(infos[j].Started)
		}

		return infos[i].ID < infos[j].ID
	})
}
