package domaincheck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeResolver answers from fixed maps; missing names fail like NXDOMAIN.
type fakeResolver struct {
	txt   map[string][]string
	mx    map[string][]*net.MX
	cname map[string]string
}

var errNXDomain = errors.New("no such host")

func (f fakeResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if v, ok := f.txt[name]; ok {
		return v, nil
	}
	return nil, errNXDomain
}

func (f fakeResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	if v, ok := f.mx[name]; ok {
		return v, nil
	}
	return nil, errNXDomain
}

func (f fakeResolver) LookupCNAME(ctx context.Context, name string) (string, error) {
	if v, ok := f.cname[name]; ok {
		return v, nil
	}
	return "", errNXDomain
}

// resolverFor builds a fake that satisfies every record the wizard expects,
// including the freshly generated ownership token.
func resolverFor(w *Wizard) fakeResolver {
	var token string
	for _, rec := range w.Records() {
		if rec.Kind == KindTXT && rec.Purpose == "proves you control the domain" {
			token = rec.Value
		}
	}
	return fakeResolver{
		txt: map[string][]string{
			"example.org": {
				token,
				"v=spf1 include:mail.kal.example -all",
				"unrelated-txt-record",
			},
		},
		mx: map[string][]*net.MX{
			"example.org": {
				{Host: "mail.kal.example.", Pref: 10},
			},
		},
		cname: map[string]string{
			"kal._domainkey.example.org": "kal.domainkey.mail.kal.example.",
		},
	}
}

func TestWizardVerifies(t *testing.T) {
	t.Parallel()

	w := NewWizard(testLogger(), "example.org", "mail.kal.example", "kal", fakeResolver{})
	w.resolver = resolverFor(w)

	statuses, verified := w.Check(context.Background())
	if !verified {
		for _, st := range statuses {
			if !st.OK {
				t.Errorf("record %s %s not ok (found %v, err %v)", st.Record.Kind, st.Record.Name, st.Found, st.Err)
			}
		}
		t.Fatalf("domain did not verify")
	}
	if len(statuses) != 4 {
		t.Errorf("statuses = %d, want 4", len(statuses))
	}
}

func TestWizardPartialSetup(t *testing.T) {
	t.Parallel()

	w := NewWizard(testLogger(), "example.org", "mail.kal.example", "kal", fakeResolver{})
	resolver := resolverFor(w)
	// MX points somewhere else, everything else is fine.
	resolver.mx["example.org"] = []*net.MX{{Host: "mx.other.example.", Pref: 10}}
	w.resolver = resolver

	statuses, verified := w.Check(context.Background())
	if verified {
		t.Fatalf("domain verified despite wrong MX")
	}

	okCount := 0
	for _, st := range statuses {
		if st.OK {
			okCount++
			continue
		}
		if st.Record.Kind != KindMX {
			t.Errorf("record %s %s unexpectedly not ok", st.Record.Kind, st.Record.Name)
		}
		if len(st.Found) == 0 {
			t.Errorf("failed MX check reports no found values")
		}
	}
	if okCount != 3 {
		t.Errorf("ok records = %d, want 3", okCount)
	}
}

func TestWizardLookupFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	// Nothing resolves at all: every status is not-OK with an error, but
	// Check itself completes.
	w := NewWizard(testLogger(), "example.org", "mail.kal.example", "kal", fakeResolver{})

	statuses, verified := w.Check(context.Background())
	if verified {
		t.Fatalf("empty DNS verified")
	}
	for _, st := range statuses {
		if st.OK {
			t.Errorf("record %s %s ok without any DNS data", st.Record.Kind, st.Record.Name)
		}
		if st.Err == nil {
			t.Errorf("record %s %s carries no lookup error", st.Record.Kind, st.Record.Name)
		}
	}
}

func TestWizardTokenIsFreshPerRun(t *testing.T) {
	t.Parallel()

	first := NewWizard(testLogger(), "example.org", "mail.kal.example", "kal", fakeResolver{})
	second := NewWizard(testLogger(), "example.org", "mail.kal.example", "kal", fakeResolver{})

	tokenOf := func(w *Wizard) string {
		for _, rec := range w.Records() {
			if rec.Kind == KindTXT && rec.Purpose == "proves you control the domain" {
				return rec.Value
			}
		}
		return ""
	}

	a, b := tokenOf(first), tokenOf(second)
	if a == "" || b == "" {
		t.Fatalf("token record missing")
	}
	if a == b {
		t.Errorf("ownership token reused across runs")
	}
}
