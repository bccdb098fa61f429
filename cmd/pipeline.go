package cmd

import (
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/promedmap/internal/alerts"
	"github.com/KaramelBytes/promedmap/internal/colour"
	"github.com/KaramelBytes/promedmap/internal/table"
)

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
}

// annotateTracker loads the tracker and colours it from the configured store.
// New colours are saved when save is true.
func annotateTracker(save bool) (*alerts.Dataset, error) {
	t, err := table.Load(cfg.TrackerPath, loadOptions())
	if err != nil {
		return nil, err
	}
	store, err := colour.OpenStore(cfg.ColoursPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	known, err := store.Load()
	if err != nil {
		return nil, err
	}
	ds, updated, err := alerts.Annotate(t, known, newRand())
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"rows":    t.Len(),
		"points":  ds.Len(),
		"skipped": ds.Skipped,
		"new":     len(ds.Added),
	}).Debug("tracker annotated")
	if save && len(ds.Added) > 0 {
		if err := store.Save(updated); err != nil {
			return nil, err
		}
		log.WithField("diseases", ds.Added).Info("saved new colours")
	}
	return ds, nil
}
