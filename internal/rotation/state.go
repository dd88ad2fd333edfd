package rotation

import (
	"vpnrotator/internal/catalog"
	"vpnrotator/internal/domain"
)

const DefaultIntervalSeconds = 300

type Reason string

const (
	ReasonConnect Reason = "connect"
	ReasonSelect  Reason = "select"
	ReasonManual  Reason = "manual"
	ReasonAuto    Reason = "auto"
)

// ReportTag identifies one report request. A result is only applied while its
// tag is still the latest one issued.
type ReportTag struct {
	ProxyID string
	Seq     uint64
}

type State struct {
	Connection domain.ConnectionState
	SelectedID string
	Timer      int
	Interval   int
	AutoRotate bool
	Report     *domain.SecurityReport
	Analyzing  bool

	connectSeq uint64
	reportSeq  uint64
}

func NewState(intervalSeconds int, autoRotate bool) State {
	if intervalSeconds <= 0 {
		intervalSeconds = DefaultIntervalSeconds
	}
	return State{
		Connection: domain.Disconnected,
		Timer:      intervalSeconds,
		Interval:   intervalSeconds,
		AutoRotate: autoRotate,
	}
}

type Event interface{ event() }

type (
	Connect          struct{}
	Disconnect       struct{}
	RotateNow        struct{}
	ToggleAutoRotate struct{}
	Tick             struct{}
	SelectProxy      struct{ ID string }
	SetInterval      struct{ Seconds int }
	ConnectResolved  struct{ Seq uint64 }
	ReportReady      struct {
		Tag    ReportTag
		Report domain.SecurityReport
	}
)

func (Connect) event()          {}
func (Disconnect) event()       {}
func (RotateNow) event()        {}
func (ToggleAutoRotate) event() {}
func (Tick) event()             {}
func (SelectProxy) event()      {}
func (SetInterval) event()      {}
func (ConnectResolved) event()  {}
func (ReportReady) event()      {}

type Effect interface{ effect() }

type (
	ScheduleConnect struct{ Seq uint64 }
	RequestReport   struct{ Tag ReportTag }
	Rotated         struct {
		From   string
		To     string
		Reason Reason
	}
)

func (ScheduleConnect) effect() {}
func (RequestReport) effect()   {}
func (Rotated) effect()         {}

// Reducer is the pure state machine. Intn supplies the random draws used when
// a proxy has to be picked.
type Reducer struct {
	Catalog *catalog.Catalog
	Intn    func(int) int
}

func (r Reducer) Reduce(s State, e Event) (State, []Effect, error) {
	switch ev := e.(type) {
	case Connect:
		if s.Connection != domain.Disconnected {
			return s, nil, nil
		}
		s.Connection = domain.Connecting
		s.connectSeq++
		return s, []Effect{ScheduleConnect{Seq: s.connectSeq}}, nil

	case ConnectResolved:
		if s.Connection != domain.Connecting || ev.Seq != s.connectSeq {
			return s, nil, nil
		}
		from := s.SelectedID
		if !r.Catalog.Has(s.SelectedID) {
			s.SelectedID = r.Catalog.Pick(r.Intn, "").ID
		}
		s.Connection = domain.Connected
		s.Timer = s.Interval
		s, report := requestReport(s)
		return s, []Effect{Rotated{From: from, To: s.SelectedID, Reason: ReasonConnect}, report}, nil

	case Disconnect:
		if s.Connection == domain.Disconnected {
			return s, nil, nil
		}
		s.Connection = domain.Disconnected
		s.Report = nil
		s.Analyzing = false
		s.reportSeq++
		return s, nil, nil

	case SelectProxy:
		proxy, err := r.Catalog.Get(ev.ID)
		if err != nil {
			return s, nil, err
		}
		from := s.SelectedID
		s.SelectedID = proxy.ID
		if s.Connection != domain.Connected {
			return s, nil, nil
		}
		s.Timer = s.Interval
		s, report := requestReport(s)
		if from == proxy.ID {
			// Reselecting the active proxy refreshes the window but is not a rotation.
			return s, []Effect{report}, nil
		}
		return s, []Effect{Rotated{From: from, To: s.SelectedID, Reason: ReasonSelect}, report}, nil

	case RotateNow:
		return r.rotate(s, ReasonManual)

	case Tick:
		if s.Connection != domain.Connected || !s.AutoRotate {
			return s, nil, nil
		}
		if s.Timer <= 1 {
			return r.rotate(s, ReasonAuto)
		}
		s.Timer--
		return s, nil, nil

	case ToggleAutoRotate:
		s.AutoRotate = !s.AutoRotate
		return s, nil, nil

	case SetInterval:
		if ev.Seconds <= 0 {
			return s, nil, nil
		}
		s.Interval = ev.Seconds
		if s.Timer > s.Interval {
			s.Timer = s.Interval
		}
		return s, nil, nil

	case ReportReady:
		if s.Connection != domain.Connected || ev.Tag.Seq != s.reportSeq || ev.Tag.ProxyID != s.SelectedID {
			return s, nil, nil
		}
		report := ev.Report
		s.Report = &report
		s.Analyzing = false
		return s, nil, nil
	}

	return s, nil, nil
}

func (r Reducer) rotate(s State, reason Reason) (State, []Effect, error) {
	from := s.SelectedID
	s.SelectedID = r.Catalog.Pick(r.Intn, from).ID
	s.Timer = s.Interval
	if s.Connection != domain.Connected {
		return s, nil, nil
	}
	s, report := requestReport(s)
	return s, []Effect{Rotated{From: from, To: s.SelectedID, Reason: reason}, report}, nil
}

func requestReport(s State) (State, Effect) {
	s.reportSeq++
	s.Report = nil
	s.Analyzing = true
	return s, RequestReport{Tag: ReportTag{ProxyID: s.SelectedID, Seq: s.reportSeq}}
}
