package main

import (
	"os"

	json "github.com/KevinWang15/go-json5"
	"github.com/pkg/errors"

	"github.com/radioastro/visim/sky"
	"github.com/radioastro/visim/types/fcomplex"
)

// skyDocument is the JSON5 schema of a sky-model file. Direction cosines
// are relative to the phase centre; FWHM values are radians, the position
// angle is radians from north to east. Sources with a zero major axis are
// treated as points.
type skyDocument struct {
	Sources []struct {
		L float64 `json:"l"`
		M float64 `json:"m"`

		I float64 `json:"i"`
		Q float64 `json:"q"`
		U float64 `json:"u"`
		V float64 `json:"v"`

		FWHMMaj       float64 `json:"fwhm_maj"`
		FWHMMin       float64 `json:"fwhm_min"`
		PositionAngle float64 `json:"position_angle"`
	} `json:"sources"`
}

func loadSky[T fcomplex.Float](path string) (*sky.Model[T], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sky model %q", path)
	}
	var doc skyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing sky model %q", path)
	}
	sk := sky.New[T](len(doc.Sources))
	for i, s := range doc.Sources {
		if err := sk.SetSource(i, T(s.L), T(s.M), T(s.I), T(s.Q), T(s.U), T(s.V)); err != nil {
			return nil, errors.WithMessagef(err, "sky model %q", path)
		}
		if s.FWHMMaj > 0 {
			if err := sk.SetGaussianShape(i, s.FWHMMaj, s.FWHMMin, s.PositionAngle); err != nil {
				return nil, errors.WithMessagef(err, "sky model %q", path)
			}
		}
	}
	return sk, nil
}
