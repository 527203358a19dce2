package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/pmxixon/airemap/internal/forecast"
	"github.com/pmxixon/airemap/internal/sensor"
	"github.com/pmxixon/airemap/internal/store"
	"github.com/pmxixon/airemap/internal/wind"
)

// Intervals configures how often each background job runs.
type Intervals struct {
	SensorRefresh  time.Duration
	WindRefresh    time.Duration
	Forecast       time.Duration
	BaselineExport time.Duration
}

// Scheduler runs the periodic jobs: sensor refresh, wind field refresh,
// forecast refresh, and history export. Wind and forecast are optional.
type Scheduler struct {
	scheduler *gocron.Scheduler
	intervals Intervals

	sensors      *sensor.Service
	windCtrl     *wind.Controller
	forecastFeed *forecast.Feed
	history      *store.HistoryStore
	exportPath   string
}

// New creates a Scheduler. windCtrl and forecastFeed may be nil to skip
// those jobs.
func New(
	intervals Intervals,
	sensors *sensor.Service,
	windCtrl *wind.Controller,
	forecastFeed *forecast.Feed,
	history *store.HistoryStore,
	exportPath string,
) *Scheduler {
	return &Scheduler{
		scheduler:    gocron.NewScheduler(time.UTC),
		intervals:    intervals,
		sensors:      sensors,
		windCtrl:     windCtrl,
		forecastFeed: forecastFeed,
		history:      history,
		exportPath:   exportPath,
	}
}

// Start registers the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.intervals.SensorRefresh).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()
		if err := s.sensors.Refresh(ctx); err != nil {
			log.Printf("scheduler: sensor refresh failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	if s.windCtrl != nil {
		_, err = s.scheduler.Every(s.intervals.WindRefresh).Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.windCtrl.Refresh(ctx); err != nil {
				log.Printf("scheduler: wind refresh failed: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}

	if s.forecastFeed != nil {
		_, err = s.scheduler.Every(s.intervals.Forecast).Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.forecastFeed.Refresh(ctx); err != nil {
				log.Printf("scheduler: forecast refresh failed: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}

	if s.history != nil && s.exportPath != "" {
		_, err = s.scheduler.Every(s.intervals.BaselineExport).Do(func() {
			if err := s.history.Export(s.exportPath); err != nil {
				log.Printf("scheduler: history export failed: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
