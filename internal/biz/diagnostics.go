package biz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-kratos/kratos/v2/log"
)

// Finding is one integrity problem in a namespace.
type Finding struct {
	Namespace Namespace `json:"namespace"`
	Key       string    `json:"key,omitempty"`
	Problem   string    `json:"problem"`
}

// NamespaceStat summarises one namespace.
type NamespaceStat struct {
	Namespace Namespace `json:"namespace"`
	Present   bool      `json:"present"`
	Entries   int       `json:"entries"`
}

// Report is the result of an integrity check.
type Report struct {
	Namespaces []NamespaceStat `json:"namespaces"`
	Findings   []Finding       `json:"findings"`
}

// OK reports whether no problems were found.
func (r *Report) OK() bool {
	return len(r.Findings) == 0
}

// Diagnostics checks the cache store without modifying it.
type Diagnostics struct {
	repo CacheRepo
	log  *log.Helper
}

// NewDiagnostics creates a Diagnostics.
func NewDiagnostics(repo CacheRepo, logger log.Logger) *Diagnostics {
	return &Diagnostics{
		repo: repo,
		log:  log.NewHelper(log.With(logger, "module", "biz/diagnostics")),
	}
}

// Check scans every namespace for empty keys and values.
func (d *Diagnostics) Check(ctx context.Context) (*Report, error) {
	report := &Report{Findings: []Finding{}}
	for _, ns := range Namespaces {
		raw, err := d.repo.Get(ctx, ns)
		if err != nil {
			return nil, ErrTransientIO.WithCause(fmt.Errorf("get %s: %w", ns, err))
		}
		stat := NamespaceStat{Namespace: ns, Present: len(raw) > 0}
		if stat.Present {
			var findings []Finding
			stat.Entries, findings = checkNamespace(ns, raw)
			report.Findings = append(report.Findings, findings...)
		}
		report.Namespaces = append(report.Namespaces, stat)
	}

	for _, f := range report.Findings {
		d.log.WithContext(ctx).Warnf("data integrity: %s[%s]: %s", f.Namespace, f.Key, f.Problem)
	}
	return report, nil
}

func checkNamespace(ns Namespace, raw []byte) (int, []Finding) {
	switch ns {
	case NamespaceChatted, NamespaceBlocklist:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return 0, []Finding{{Namespace: ns, Problem: "not a JSON list: " + err.Error()}}
		}
		var findings []Finding
		for i, item := range items {
			if !nonEmptyString(item) {
				findings = append(findings, Finding{Namespace: ns, Key: fmt.Sprint(i), Problem: "empty or non-string id " + string(item)})
			}
		}
		return len(items), findings
	default:
		var items map[string]json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return 0, []Finding{{Namespace: ns, Problem: "not a JSON object: " + err.Error()}}
		}
		var findings []Finding
		for k, v := range items {
			if k == "" {
				findings = append(findings, Finding{Namespace: ns, Problem: "empty key"})
			}
			if ns == NamespacePhotoGender {
				if !probability(v) {
					findings = append(findings, Finding{Namespace: ns, Key: k, Problem: "value is not a probability: " + string(v)})
				}
			} else if !nonEmptyString(v) {
				findings = append(findings, Finding{Namespace: ns, Key: k, Problem: "empty or non-string value " + string(v)})
			}
		}
		sort.Slice(findings, func(i, j int) bool { return findings[i].Key < findings[j].Key })
		return len(items), findings
	}
}

func nonEmptyString(v json.RawMessage) bool {
	var s string
	return json.Unmarshal(v, &s) == nil && s != ""
}

func probability(v json.RawMessage) bool {
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return false
	}
	var p float64
	return json.Unmarshal(v, &p) == nil && p >= 0 && p <= 1
}
