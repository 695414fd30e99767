package hal

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ====== Tunables ======
const (
	// simSoilDecayPerMin: moisture lost per minute with no irrigation, in [0..1].
	simSoilDecayPerMin = 0.002

	// simTempStepC / simLevelStepCm: max random-walk step per read.
	simTempStepC   = 0.15
	simLevelStepCm = 0.4

	// simSoilJitter: per-read noise on the moisture fraction.
	simSoilJitter = 0.004
)

// SimSoilADC random-walks a moisture fraction and inverts it onto the probe's
// raw span, so the node under test sees realistic dry-down curves.
type SimSoilADC struct {
	dryRaw, wetRaw int
	moisture       float64 // [0..1]
	last           time.Time
	rng            *rand.Rand
}

func NewSimSoilADC(dryRaw, wetRaw int, startMoisture float64, seed int64) *SimSoilADC {
	return &SimSoilADC{
		dryRaw:   dryRaw,
		wetRaw:   wetRaw,
		moisture: clamp01(startMoisture),
		last:     time.Now(),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (a *SimSoilADC) ReadRaw() (int, error) {
	now := time.Now()
	dtMin := now.Sub(a.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	a.last = now
	a.moisture = clamp01(a.moisture - simSoilDecayPerMin*dtMin + (a.rng.Float64()*2-1)*simSoilJitter)
	raw := float64(a.dryRaw) - a.moisture*float64(a.dryRaw-a.wetRaw)
	return int(math.Round(raw)), nil
}

// SimThermistorADC walks a temperature around a setpoint and inverts it
// through the divider's Beta curve back into a raw count.
type SimThermistorADC struct {
	beta, t0K float64
	fullScale int
	tempC     float64
	setC      float64
	rng       *rand.Rand
}

func NewSimThermistorADC(beta, t0K float64, fullScale int, setpointC float64, seed int64) *SimThermistorADC {
	return &SimThermistorADC{
		beta:      beta,
		t0K:       t0K,
		fullScale: fullScale,
		tempC:     setpointC,
		setC:      setpointC,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

func (a *SimThermistorADC) ReadRaw() (int, error) {
	// mean-reverting walk so the value hovers near the setpoint
	a.tempC += (a.rng.Float64()*2-1)*simTempStepC + 0.02*(a.setC-a.tempC)
	tK := a.tempC + 273.15
	raw := float64(a.fullScale) / (1 + math.Exp(a.beta*(1/a.t0K-1/tK)))
	n := int(math.Round(raw))
	if n < 1 {
		n = 1
	}
	if n >= a.fullScale {
		n = a.fullScale - 1
	}
	return n, nil
}

// SimEchoPulser walks a target distance inside the tank range and converts it
// to an echo round-trip. NoEchoProb injects hardware timeouts (zero reading).
type SimEchoPulser struct {
	cmPerUs    float64
	distCm     float64
	minCm      float64
	maxCm      float64
	noEchoProb float64
	rng        *rand.Rand
}

func NewSimEchoPulser(cmPerUs, startCm, minCm, maxCm, noEchoProb float64, seed int64) *SimEchoPulser {
	return &SimEchoPulser{
		cmPerUs:    cmPerUs,
		distCm:     startCm,
		minCm:      minCm,
		maxCm:      maxCm,
		noEchoProb: noEchoProb,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (p *SimEchoPulser) EchoMicros() (int, error) {
	if p.rng.Float64() < p.noEchoProb {
		return 0, nil
	}
	p.distCm += (p.rng.Float64()*2 - 1) * simLevelStepCm
	if p.distCm < p.minCm {
		p.distCm = p.minCm
	}
	if p.distCm > p.maxCm {
		p.distCm = p.maxCm
	}
	return int(math.Round(p.distCm / p.cmPerUs)), nil
}

// SimLink associates after a configurable number of probes and exposes a
// fixed pseudo hardware address. Drop tears the link down again.
type SimLink struct {
	Addr    string
	UpAfter int

	probes int
	up     bool
}

func (l *SimLink) TryAssociate() error {
	if l.up {
		return nil
	}
	l.probes++
	if l.probes >= l.UpAfter {
		l.up = true
		l.probes = 0
		return nil
	}
	return fmt.Errorf("sim link: probe %d, not up yet", l.probes)
}

func (l *SimLink) Associated() bool { return l.up }

func (l *SimLink) Drop() { l.up = false }

func (l *SimLink) HardwareAddr() (string, error) {
	if l.Addr == "" {
		return "", fmt.Errorf("sim link: no address configured")
	}
	return l.Addr, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
