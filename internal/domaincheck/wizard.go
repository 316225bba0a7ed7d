// Package domaincheck implements the setup wizard for using a custom mail
// domain: it computes the DNS records the domain needs and evaluates them
// against a resolver. The polling loop and the DNS transport live with the
// caller; the wizard only decides what must exist and whether it does.
package domaincheck

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"
)

// RecordKind is the DNS record type a check looks at.
type RecordKind string

const (
	KindMX    RecordKind = "MX"
	KindTXT   RecordKind = "TXT"
	KindCNAME RecordKind = "CNAME"
)

// Record is one DNS record the domain must carry.
type Record struct {
	Kind RecordKind
	// Fully qualified name to query
	Name string
	// Expected value; for TXT a required substring match, otherwise exact
	Value string
	// Short human explanation shown in the wizard
	Purpose string
}

// Status is the wizard's verdict on one record.
type Status struct {
	Record Record
	OK     bool
	// What the resolver actually returned, for display
	Found []string
	// Lookup failure, if any; an NXDOMAIN-style miss is not an error,
	// just a not-OK status
	Err error
}

// Resolver answers the DNS queries the wizard needs. The default wraps
// net.Resolver; tests substitute a fake.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupCNAME(ctx context.Context, name string) (string, error)
}

// NetResolver adapts net.Resolver to the Resolver interface.
type NetResolver struct {
	R *net.Resolver
}

func (n NetResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	return n.resolver().LookupTXT(ctx, name)
}

func (n NetResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	return n.resolver().LookupMX(ctx, name)
}

func (n NetResolver) LookupCNAME(ctx context.Context, name string) (string, error) {
	return n.resolver().LookupCNAME(ctx, name)
}

func (n NetResolver) resolver() *net.Resolver {
	if n.R != nil {
		return n.R
	}
	return net.DefaultResolver
}

// Wizard verifies one mail domain.
type Wizard struct {
	logger   *slog.Logger
	domain   string
	records  []Record
	resolver Resolver
}

// NewWizard prepares the record set for a domain. mailHost is the MX target
// of the mail service, dkimSelector the selector of its DKIM key. The
// ownership token is generated fresh; re-running the wizard issues a new
// token the domain owner must publish.
func NewWizard(logger *slog.Logger, domain, mailHost, dkimSelector string, resolver Resolver) *Wizard {
	if resolver == nil {
		resolver = NetResolver{}
	}
	token := "kal-verify=" + uuid.NewString()
	records := []Record{
		{
			Kind:    KindTXT,
			Name:    domain,
			Value:   token,
			Purpose: "proves you control the domain",
		},
		{
			Kind:    KindMX,
			Name:    domain,
			Value:   mailHost,
			Purpose: "routes incoming mail to the service",
		},
		{
			Kind:    KindTXT,
			Name:    domain,
			Value:   "v=spf1 include:" + mailHost + " -all",
			Purpose: "authorizes the service to send for the domain",
		},
		{
			Kind:    KindCNAME,
			Name:    dkimSelector + "._domainkey." + domain,
			Value:   dkimSelector + ".domainkey." + mailHost,
			Purpose: "publishes the DKIM signing key",
		},
	}
	return &Wizard{logger: logger, domain: domain, records: records, resolver: resolver}
}

// Domain returns the domain under verification.
func (w *Wizard) Domain() string { return w.domain }

// Records returns the records the domain owner must publish.
func (w *Wizard) Records() []Record { return w.records }

// Check evaluates every record once and reports whether the domain is fully
// verified. Individual lookup failures do not abort the pass; they show up
// as not-OK statuses so the wizard can display partial progress.
func (w *Wizard) Check(ctx context.Context) ([]Status, bool) {
	statuses := make([]Status, 0, len(w.records))
	verified := true

	for _, rec := range w.records {
		st := w.check(ctx, rec)
		if !st.OK {
			verified = false
		}
		statuses = append(statuses, st)
	}

	w.logger.Info("domain check pass finished", "domain", w.domain, "verified", verified)
	return statuses, verified
}

func (w *Wizard) check(ctx context.Context, rec Record) Status {
	st := Status{Record: rec}

	switch rec.Kind {
	case KindTXT:
		values, err := w.resolver.LookupTXT(ctx, rec.Name)
		if err != nil {
			st.Err = err
			return st
		}
		st.Found = values
		for _, v := range values {
			if strings.Contains(v, rec.Value) {
				st.OK = true
				break
			}
		}

	case KindMX:
		mxs, err := w.resolver.LookupMX(ctx, rec.Name)
		if err != nil {
			st.Err = err
			return st
		}
		for _, mx := range mxs {
			host := strings.TrimSuffix(mx.Host, ".")
			st.Found = append(st.Found, fmt.Sprintf("%s (pref %d)", host, mx.Pref))
			if strings.EqualFold(host, rec.Value) {
				st.OK = true
			}
		}

	case KindCNAME:
		target, err := w.resolver.LookupCNAME(ctx, rec.Name)
		if err != nil {
			st.Err = err
			return st
		}
		target = strings.TrimSuffix(target, ".")
		st.Found = []string{target}
		st.OK = strings.EqualFold(target, rec.Value)
	}

	return st
}
