// Package matchcache remembers which spelling of a company name a lookup
// source actually recognized, so later lookups can go straight to it.
package matchcache

import (
	"context"
	"sort"
	"strings"
)

// Snapshot is the whole cache as source -> company name -> matched name.
// It is also the on-disk format of the legacy JSON cache file.
type Snapshot map[string]map[string]string

// Cache stores company-name matches per source. Set is an atomic per-key
// upsert: concurrent writers never lose each other's entries.
type Cache interface {
	Get(ctx context.Context, source, company string) (matched string, ok bool, err error)
	Set(ctx context.Context, source, company, matched string) error
	All(ctx context.Context) (Snapshot, error)
	Close() error
}

// Len counts the entries in a snapshot.
func (s Snapshot) Len() int {
	n := 0
	for _, m := range s {
		n += len(m)
	}
	return n
}

// Put adds an entry, creating the source map as needed.
func (s Snapshot) Put(source, company, matched string) {
	m := s[source]
	if m == nil {
		m = make(map[string]string)
		s[source] = m
	}
	m[company] = matched
}

// Entry is one cached match.
type Entry struct {
	Source  string
	Company string
	Matched string
}

// Entries flattens the snapshot in a stable order.
func (s Snapshot) Entries() []Entry {
	var out []Entry
	for src, m := range s {
		for company, matched := range m {
			out = append(out, Entry{Source: src, Company: company, Matched: matched})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Company < out[j].Company
	})
	return out
}

func validKey(source, company string) bool {
	return strings.TrimSpace(source) != "" && strings.TrimSpace(company) != ""
}
