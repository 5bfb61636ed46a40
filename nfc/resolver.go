package nfc

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// IdentitySource records where a resolved identity came from.
type IdentitySource string

const (
	SourceApplication IdentitySource = "application"
	SourceHardware    IdentitySource = "hardware"
)

var errNotType4 = errors.New("activated tag is not Type 4")

// resolveStep is one attempt at naming a target. The first step that
// returns a nil error wins.
type resolveStep struct {
	source IdentitySource
	fn     func(dev Device, target Target) (string, error)
}

// Resolver turns a sensed target into a single identity string. Phones
// running an HCE app answer a SELECT for the configured AID with their own
// identifier; every other token is named by its anti-collision UID.
//
// A Resolver holds no per-token state and is safe for concurrent use.
type Resolver struct {
	aid        []byte
	selectAPDU []byte
	steps      []resolveStep
}

// NewResolver creates a Resolver selecting aid. A nil or empty aid selects
// DefaultAID.
func NewResolver(aid []byte) *Resolver {
	if len(aid) == 0 {
		aid = DefaultAID
	}
	r := &Resolver{
		aid:        append([]byte(nil), aid...),
		selectAPDU: SelectByAIDAPDU(aid),
	}
	r.steps = []resolveStep{
		{source: SourceApplication, fn: r.applicationIdentity},
		{source: SourceHardware, fn: hardwareIdentity},
	}
	return r
}

// AID returns the application identifier the resolver selects.
func (r *Resolver) AID() []byte {
	return append([]byte(nil), r.aid...)
}

// Resolve returns the identity of target. When the application exchange
// does not work out the hardware UID is returned. An application that
// answers 90 00 with no payload resolves to "", which the detector ignores.
func (r *Resolver) Resolve(dev Device, target Target) string {
	id, _ := r.ResolveWithSource(dev, target)
	return id
}

// ResolveWithSource is Resolve that also reports which step produced the
// identity.
func (r *Resolver) ResolveWithSource(dev Device, target Target) (string, IdentitySource) {
	entry := logger.WithField("uid", FormatUID(target.UID()))
	for _, step := range r.steps {
		id, err := step.fn(dev, target)
		if err == nil {
			entry.WithFields(log.Fields{"identity": id, "source": step.source}).Debug("Resolved token identity")
			return id, step.source
		}
		entry.WithField("source", step.source).Debugf("Identity step skipped: %v", err)
	}
	// hardwareIdentity never fails, so this is only reached with no steps.
	return FormatUID(target.UID()), SourceHardware
}

// applicationIdentity activates target and asks it for a custom identity.
// It performs at most one activation and one transmission.
func (r *Resolver) applicationIdentity(dev Device, target Target) (string, error) {
	tag, err := dev.Activate(target)
	if err != nil {
		return "", err
	}
	if tag.Type() != TagTypeType4 {
		return "", fmt.Errorf("%w: got %s", errNotType4, tag.Type())
	}

	raw, err := tag.Transceive(r.selectAPDU)
	if err != nil {
		return "", err
	}
	resp, err := ParseAPDUResponse(raw)
	if err != nil {
		return "", Errorf(ErrCodeInvalidData, "SelectAID", "malformed response %X", raw)
	}
	if err := resp.Error(); err != nil {
		return "", err
	}
	return FormatUID(resp.Data), nil
}

func hardwareIdentity(_ Device, target Target) (string, error) {
	return FormatUID(target.UID()), nil
}
