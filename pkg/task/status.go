package task

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Kind names a status variant.
type Kind string

const (
	KindTodo       Kind = "todo"
	KindInProgress Kind = "in_progress"
	KindWaiting    Kind = "waiting"
	KindBlocked    Kind = "blocked"
	KindOnHold     Kind = "on_hold"
	KindDone       Kind = "done"
	KindCanceled   Kind = "canceled"
)

// Kinds lists every status kind in workflow order.
var Kinds = []Kind{KindTodo, KindInProgress, KindWaiting, KindBlocked, KindOnHold, KindDone, KindCanceled}

var labels = map[Kind]string{
	KindTodo:       "To do",
	KindInProgress: "In progress",
	KindWaiting:    "Waiting",
	KindBlocked:    "Blocked",
	KindOnHold:     "On hold",
	KindDone:       "Done",
	KindCanceled:   "Canceled",
}

// flow is the legal next kinds per current kind. Terminal kinds map to nil.
var flow = map[Kind][]Kind{
	KindTodo:       {KindInProgress, KindWaiting, KindBlocked, KindCanceled},
	KindInProgress: {KindWaiting, KindBlocked, KindOnHold, KindDone, KindCanceled},
	KindWaiting:    {KindInProgress, KindDone, KindCanceled},
	KindBlocked:    {KindInProgress, KindWaiting, KindCanceled},
	KindOnHold:     {KindInProgress, KindCanceled},
	KindDone:       nil,
	KindCanceled:   nil,
}

var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrUnknownKind       = errors.New("unknown status kind")
)

// Status is one of the seven status variants below.
type Status interface {
	Kind() Kind
	isStatus()
}

type Todo struct{}

type InProgress struct{}

type Waiting struct {
	WaitingFor string `yaml:"waiting_for"`
	ExpectedBy string `yaml:"expected_by,omitempty"`
	Contact    string `yaml:"contact,omitempty"`
	FollowUpAt string `yaml:"follow_up_at,omitempty"`
}

type Blocked struct {
	BlockedBy string `yaml:"blocked_by"`
}

type OnHold struct {
	HoldReason string `yaml:"hold_reason"`
	ReviewAt   string `yaml:"review_at,omitempty"`
}

type Done struct {
	CompletedAt    string `yaml:"completed_at"`
	CompletionNote string `yaml:"completion_note,omitempty"`
}

type Canceled struct {
	CanceledAt   string `yaml:"canceled_at"`
	CancelReason string `yaml:"cancel_reason"`
}

func (Todo) Kind() Kind       { return KindTodo }
func (InProgress) Kind() Kind { return KindInProgress }
func (Waiting) Kind() Kind    { return KindWaiting }
func (Blocked) Kind() Kind    { return KindBlocked }
func (OnHold) Kind() Kind     { return KindOnHold }
func (Done) Kind() Kind       { return KindDone }
func (Canceled) Kind() Kind   { return KindCanceled }

func (Todo) isStatus()       {}
func (InProgress) isStatus() {}
func (Waiting) isStatus()    {}
func (Blocked) isStatus()    {}
func (OnHold) isStatus()     {}
func (Done) isStatus()       {}
func (Canceled) isStatus()   {}

// Label returns the human readable name of a kind.
func Label(k Kind) string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := flow[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// NextOptions lists the kinds reachable from the current status.
func NextOptions(from Status) []Kind {
	if from == nil {
		return nil
	}
	return flow[from.Kind()]
}

// CanTransition reports whether from may move to kind to. Staying on the same
// kind is always allowed.
func CanTransition(from Status, to Kind) bool {
	if from == nil {
		return false
	}
	if from.Kind() == to {
		return true
	}
	for _, k := range flow[from.Kind()] {
		if k == to {
			return true
		}
	}
	return false
}

// MakeDefault returns a minimal status of the given kind with empty fields.
func MakeDefault(kind Kind) (Status, error) {
	switch kind {
	case KindTodo:
		return Todo{}, nil
	case KindInProgress:
		return InProgress{}, nil
	case KindWaiting:
		return Waiting{}, nil
	case KindBlocked:
		return Blocked{}, nil
	case KindOnHold:
		return OnHold{}, nil
	case KindDone:
		return Done{}, nil
	case KindCanceled:
		return Canceled{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// tagged renders a variant with its kind as the first key.
type tagged[T any] struct {
	Kind Kind `yaml:"kind"`
	Body T    `yaml:",inline"`
}

func taggedValue(s Status) (any, error) {
	switch v := s.(type) {
	case Todo:
		return tagged[Todo]{Kind: KindTodo, Body: v}, nil
	case InProgress:
		return tagged[InProgress]{Kind: KindInProgress, Body: v}, nil
	case Waiting:
		return tagged[Waiting]{Kind: KindWaiting, Body: v}, nil
	case Blocked:
		return tagged[Blocked]{Kind: KindBlocked, Body: v}, nil
	case OnHold:
		return tagged[OnHold]{Kind: KindOnHold, Body: v}, nil
	case Done:
		return tagged[Done]{Kind: KindDone, Body: v}, nil
	case Canceled:
		return tagged[Canceled]{Kind: KindCanceled, Body: v}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownKind, s)
}

// statusField carries a Status through YAML.
type statusField struct {
	Status Status
}

func (f statusField) MarshalYAML() (any, error) {
	if f.Status == nil {
		return tagged[Todo]{Kind: KindTodo}, nil
	}
	return taggedValue(f.Status)
}

func (f *statusField) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Kind string `yaml:"kind"`
	}
	if err := value.Decode(&head); err != nil {
		return err
	}
	kind, err := ParseKind(head.Kind)
	if err != nil {
		return err
	}

	switch kind {
	case KindTodo:
		f.Status = Todo{}
	case KindInProgress:
		f.Status = InProgress{}
	case KindWaiting:
		var v Waiting
		err = value.Decode(&v)
		f.Status = v
	case KindBlocked:
		var v Blocked
		err = value.Decode(&v)
		f.Status = v
	case KindOnHold:
		var v OnHold
		err = value.Decode(&v)
		f.Status = v
	case KindDone:
		var v Done
		err = value.Decode(&v)
		f.Status = v
	case KindCanceled:
		var v Canceled
		err = value.Decode(&v)
		f.Status = v
	}
	return err
}
