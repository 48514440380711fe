package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/joescharf/evidence/internal/aggregate"
	"github.com/joescharf/evidence/internal/artifact"
	"github.com/joescharf/evidence/internal/capture"
	"github.com/joescharf/evidence/internal/document"
	"github.com/joescharf/evidence/internal/logger"
	"github.com/joescharf/evidence/internal/models"
	"github.com/joescharf/evidence/internal/pipeline"
	"github.com/joescharf/evidence/internal/store"
	"github.com/joescharf/evidence/internal/syncer"
	"github.com/joescharf/evidence/internal/tracker"
	"github.com/joescharf/evidence/internal/tracker/jira"
	"github.com/joescharf/evidence/internal/tracker/redmine"
)

// services holds the handles shared by the commands. They are built once
// and passed explicitly.
type services struct {
	store     store.Store
	issues    *aggregate.Service
	syncer    *syncer.Syncer
	pipeline  *pipeline.Pipeline
	publisher *artifact.GCSPublisher
}

func buildServices(ctx context.Context) (*services, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	log := logger.OrDefault(appLog)

	fallback, err := aggregate.ParseFallbackMode(viper.GetString("aggregate.fallback_mode"))
	if err != nil {
		return nil, err
	}

	jc := jira.NewClient(jira.Config{
		BaseURL:        viper.GetString("jira.base_url"),
		SearchEndpoint: viper.GetString("jira.search_endpoint"),
		MaxResults:     viper.GetInt("jira.max_results"),
		Timeout:        viper.GetDuration("jira.timeout"),
	})
	rc := redmine.NewClient(redmine.Config{
		BaseURL:        viper.GetString("redmine.base_url"),
		IssuesEndpoint: viper.GetString("redmine.issues_endpoint"),
		PageSize:       viper.GetInt("redmine.page_size"),
		StatusID:       viper.GetString("redmine.status_id"),
		Timeout:        viper.GetDuration("redmine.timeout"),
	})

	svc := &services{
		store: s,
		issues: aggregate.NewService(jc, rc, s, aggregate.Config{
			JQLTemplate:  viper.GetString("jira.jql_template"),
			FallbackMode: fallback,
		}, log),
		syncer: syncer.New(rc, s, redmine.Query{}, log),
	}

	baseDir := viper.GetString("evidence.output_dir")
	svc.pipeline = &pipeline.Pipeline{
		Aggregator: svc.issues,
		Capturer: capture.Capturer{
			Launcher: capture.ChromeLauncher{
				Headless: viper.GetBool("browser.headless"),
				ExecPath: viper.GetString("browser.exec_path"),
			},
			Profiles: captureProfiles(),
			Log:      log,
		},
		Builder:   document.NewAssembler(baseDir, log),
		Templates: s,
		Config:    pipeline.Config{Role: viper.GetString("evidence.role"), BaseDir: baseDir},
		Log:       log,
	}

	if bucket := viper.GetString("artifact.gcs_bucket"); bucket != "" {
		pub, err := artifact.NewGCSPublisher(ctx, bucket, viper.GetString("artifact.gcs_prefix"), log)
		if err != nil {
			return nil, fmt.Errorf("gcs mirror: %w", err)
		}
		svc.publisher = pub
		svc.pipeline.Publisher = pub
	}
	return svc, nil
}

func (s *services) Close() {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
}

func captureProfiles() map[models.Source]capture.Profile {
	profiles := capture.DefaultProfiles()
	rp := profiles[models.SourceRedmine]
	rp.PostLoginScrollY = viper.GetInt64("browser.redmine_scroll_offset")
	profiles[models.SourceRedmine] = rp
	return profiles
}

// configCredentials returns the tracker credentials from auth.username and
// auth.password.
func configCredentials() tracker.Credentials {
	return tracker.Credentials{
		Username: viper.GetString("auth.username"),
		Password: viper.GetString("auth.password"),
	}
}

// commandContext returns a context bounded by timeout, or an unbounded one
// when timeout is zero.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
