package indicator

import "github.com/gnidc/Sheet-Manager-sub001/internal/models"

type Settings struct {
	RSIPeriod       int
	BollingerPeriod int
	BollingerK      float64
	VolumePeriod    int
}

func DefaultSettings() Settings {
	return Settings{RSIPeriod: 14, BollingerPeriod: 20, BollingerK: 2, VolumePeriod: 20}
}

// Snapshot bundles every indicator an evaluator needs for one symbol.
type Snapshot struct {
	Price       float64         `json:"price"`
	Alignment   AlignmentResult `json:"alignment"`
	RSI         float64         `json:"rsi"`
	Bollinger   float64         `json:"bollinger"`
	BollingerOK bool            `json:"bollinger_ok"`
	VolumeRatio float64         `json:"volume_ratio"`
	Gap         float64         `json:"gap_pct"`
	GapOK       bool            `json:"gap_ok"`
}

func Compute(bars []models.PriceBar, s Settings) Snapshot {
	d := DefaultSettings()
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = d.RSIPeriod
	}
	if s.BollingerPeriod <= 0 {
		s.BollingerPeriod = d.BollingerPeriod
	}
	if s.BollingerK <= 0 {
		s.BollingerK = d.BollingerK
	}
	if s.VolumePeriod <= 0 {
		s.VolumePeriod = d.VolumePeriod
	}
	out := Snapshot{
		Price:       Price(bars),
		Alignment:   Alignment(bars),
		RSI:         RSI(bars, s.RSIPeriod),
		VolumeRatio: VolumeRatio(bars, s.VolumePeriod),
	}
	out.Bollinger, out.BollingerOK = BollingerPosition(bars, s.BollingerPeriod, s.BollingerK)
	out.Gap, out.GapOK = GapPct(bars)
	return out
}
