package cli

import (
	"context"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Repository
	dbFile   string
	project  string
	database string

	// Adapters
	geminiProject  string
	geminiLocation string
	geminiModel    string

	// Transcripts
	transcriptDir    string
	transcriptBucket string
}

// repositoryFlags returns flags selecting the location store
func repositoryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db-file",
			Aliases:     []string{"f"},
			Usage:       "YAML seed file for an in-memory location database",
			Sources:     cli.EnvVars("FOODLINK_DB_FILE"),
			Destination: &cfg.dbFile,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID (Firestore location database)",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini. Without it the demo responder is used",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// transcriptFlags returns flags for where conversation transcripts are kept
func transcriptFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "transcript-dir",
			Usage:       "Local directory for conversation transcripts",
			Sources:     cli.EnvVars("FOODLINK_TRANSCRIPT_DIR"),
			Destination: &cfg.transcriptDir,
		},
		&cli.StringFlag{
			Name:        "transcript-bucket",
			Usage:       "Cloud Storage bucket for conversation transcripts",
			Sources:     cli.EnvVars("FOODLINK_TRANSCRIPT_BUCKET"),
			Destination: &cfg.transcriptBucket,
		},
	}
}

// newRepository creates the location repository. A seed file selects the in-memory
// store, otherwise Firestore is used. The returned close function is never nil.
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, func(), error) {
	if cfg.dbFile != "" {
		db, err := repository.LoadFile(cfg.dbFile)
		if err != nil {
			return nil, nil, err
		}
		logging.From(ctx).Info("loaded seed file", "path", cfg.dbFile, "locations", db.Locations.Len())
		return repository.NewMemory(db), func() {}, nil
	}

	if cfg.project == "" {
		return nil, nil, goerr.New("either db-file or project is required")
	}
	if cfg.database == "" {
		return nil, nil, goerr.New("database is required")
	}

	repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, func() {
		if err := repo.Close(); err != nil {
			logging.From(ctx).Warn("failed to close repository", "error", err)
		}
	}, nil
}

// newGemini creates a new Gemini adapter instance, or nil when no project is set
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, nil
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return gemini, nil
}

// newStorage creates the transcript storage. It returns nil when neither a bucket
// nor a directory is configured.
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	switch {
	case cfg.transcriptBucket != "":
		storage, err := adapter.NewStorage(ctx, cfg.transcriptBucket)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}
		return storage, nil

	case cfg.transcriptDir != "":
		storage, err := adapter.NewFileStorage(cfg.transcriptDir)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create file storage")
		}
		return storage, nil
	}
	return nil, nil
}

// newClientID returns the configured client id or a fresh one
func newClientID(id string) model.ClientID {
	if id != "" {
		return model.ClientID(id)
	}
	return model.NewClientID()
}
