// Package inspect provides the inspect command
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-api2ha/internal/app"
	"github.com/tphakala/birdnet-api2ha/internal/datastore"
	"github.com/tphakala/birdnet-api2ha/internal/mqtt"
)

// diagnoseTimeout bounds the whole MQTT check.
const diagnoseTimeout = 30 * time.Second

// Database is what inspect reads from the repository.
type Database interface {
	Type() string
	Location() string
	Available() bool
	Schema(ctx context.Context) (datastore.SchemaKind, error)
	MaxDetectionID(ctx context.Context) (int64, error)
	CountDetections(ctx context.Context) (int64, error)
}

// Report summarizes the resolved configuration and database state.
type Report struct {
	DatabaseType   string             `json:"database_type"`
	Database       string             `json:"database"`
	Available      bool               `json:"available"`
	Schema         string             `json:"schema,omitempty"`
	MaxDetectionID int64              `json:"max_detection_id"`
	Detections     int64              `json:"detections"`
	ClipsBasePath  string             `json:"clips_base_path"`
	Error          string             `json:"error,omitempty"`
	MQTT           []mqtt.StageResult `json:"mqtt,omitempty"`
}

// Command creates the inspect command.
func Command(appCtx *app.Context) *cobra.Command {
	var (
		checkMQTT   bool
		publishTest bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the resolved database and its contents",
		Long: `Prints the database in use, its detected schema, the highest detection id
and the number of detections. With --mqtt the broker connection is tested too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := appCtx.Repository()
			if err != nil {
				return err
			}

			report := Inspect(ctx, repo)
			report.ClipsBasePath = appCtx.Settings.ClipsBasePath

			if checkMQTT {
				dctx, cancel := context.WithTimeout(ctx, diagnoseTimeout)
				defer cancel()
				report.MQTT = mqtt.Diagnose(dctx, mqtt.ConfigFromSettings(&appCtx.Settings.MQTT), publishTest,
					mqtt.WithLogger(appCtx.Logger("mqtt")))
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else if err := Print(cmd.OutOrStdout(), &report); err != nil {
				return err
			}

			if len(report.MQTT) > 0 && !mqtt.Passed(report.MQTT) {
				return fmt.Errorf("MQTT check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkMQTT, "mqtt", false, "Test the MQTT broker connection")
	cmd.Flags().BoolVar(&publishTest, "publish", false, "With --mqtt, also publish a test message")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

// Inspect reads the database state. Read failures end up in Report.Error.
func Inspect(ctx context.Context, db Database) Report {
	r := Report{
		DatabaseType: db.Type(),
		Database:     db.Location(),
		Available:    db.Available(),
	}
	if !r.Available {
		return r
	}

	kind, err := db.Schema(ctx)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Schema = kind.String()
	if kind == datastore.SchemaUnknown {
		return r
	}

	if r.MaxDetectionID, err = db.MaxDetectionID(ctx); err != nil {
		r.Error = err.Error()
		return r
	}
	if r.Detections, err = db.CountDetections(ctx); err != nil {
		r.Error = err.Error()
	}
	return r
}

// Print writes r as aligned text.
func Print(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Database type:\t%s\n", r.DatabaseType)
	fmt.Fprintf(tw, "Database:\t%s\n", valueOr(r.Database, "(not configured)"))
	fmt.Fprintf(tw, "Available:\t%t\n", r.Available)
	if r.Schema != "" {
		fmt.Fprintf(tw, "Schema:\t%s\n", r.Schema)
	}
	if r.Available && r.Schema != "" && r.Schema != datastore.SchemaUnknown.String() {
		fmt.Fprintf(tw, "Max detection id:\t%d\n", r.MaxDetectionID)
		fmt.Fprintf(tw, "Detections:\t%d\n", r.Detections)
	}
	fmt.Fprintf(tw, "Clips:\t%s\n", valueOr(r.ClipsBasePath, "(not configured)"))
	if r.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", r.Error)
	}

	for _, s := range r.MQTT {
		status := "ok"
		switch {
		case s.Skipped:
			status = "skipped"
		case !s.Success:
			status = "FAILED: " + s.Error
		}
		fmt.Fprintf(tw, "MQTT %s:\t%s (%s)\n", s.Name, status, s.Duration.Round(time.Millisecond))
	}

	return tw.Flush()
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
