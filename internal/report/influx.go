package report

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/worldsweep/extension/internal/config"
	"github.com/worldsweep/extension/pkg/sweep"
)

// passMeasurement is the measurement name for per-pass points.
const passMeasurement = "sweep_pass"

// bucketRetentionSeconds keeps pass telemetry for 90 days.
const bucketRetentionSeconds = 60 * 60 * 24 * 90

// Influx writes one point per finished pass to InfluxDB. When the server
// is unreachable at startup, points are appended to a gzip backup file as
// line protocol instead, so telemetry survives an outage and can be
// replayed later.
type Influx struct {
	cfg          config.InfluxReportConfig
	session      SessionInfo
	client       influxdb2.Client
	writer       influxdb2_api.WriteAPI
	backupFile   *os.File
	backupWriter *gzip.Writer
	isValid      bool
	logger       zerolog.Logger
	backupPath   string
}

// NewInflux creates an InfluxDB sink. backupPath is where line protocol
// is appended when the client cannot connect.
func NewInflux(cfg config.InfluxReportConfig, session SessionInfo, backupPath string, log zerolog.Logger) *Influx {
	return &Influx{
		cfg:        cfg,
		session:    session,
		logger:     log,
		backupPath: backupPath,
	}
}

func (i *Influx) Name() string { return "influx" }

// Init establishes a connection to InfluxDB, falling back to the backup
// writer when the server does not respond to a ping.
func (i *Influx) Init() error {
	if !i.cfg.Enabled {
		return errors.New("report.influx.enabled is false")
	}

	i.client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", i.cfg.Protocol, i.cfg.Host, i.cfg.Port),
		i.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := i.client.Ping(context.Background())

	if err != nil || !running {
		i.isValid = false
		// create backup writer
		if i.backupWriter == nil {
			i.logger.Info().Str("backupPath", i.backupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(i.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			i.backupFile = file
			i.backupWriter = gzip.NewWriter(file)
		}
	} else {
		i.isValid = true
	}

	if i.isValid {
		if err := i.setupOrganizationAndBucket(); err != nil {
			return err
		}
		i.createWriter()
		i.logger.Info().Msg("InfluxDB client initialized")
	} else {
		i.logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
	}

	return nil
}

func (i *Influx) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := i.cfg.Org

	// ensure org exists
	_, err := i.client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		i.logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		_, err = i.client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			i.logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	influxOrg, err := i.client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		i.logger.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	// ensure the bucket exists with 90 day retention
	_, err = i.client.BucketsAPI().FindBucketByName(ctx, i.cfg.Bucket)
	if err != nil {
		i.logger.Info().Str("bucket", i.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = i.client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, i.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: bucketRetentionSeconds,
		})
		if err != nil {
			i.logger.Error().Err(err).Str("bucket", i.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// createWriter creates the write API for the pass bucket and drains its
// async error channel.
func (i *Influx) createWriter() {
	i.writer = i.client.WriteAPI(i.cfg.Org, i.cfg.Bucket)

	errorsCh := i.writer.Errors()
	go func(bucketName string, errorsCh <-chan error) {
		for writeErr := range errorsCh {
			i.logger.Error().Err(writeErr).Str("bucket", bucketName).
				Msg("Error sending data to InfluxDB")
		}
	}(i.cfg.Bucket, errorsCh)

	i.logger.Debug().Str("bucket", i.cfg.Bucket).Msg("InfluxDB writer initialized")
}

// RecordPass converts the report into a single point.
func (i *Influx) RecordPass(r *sweep.Report) error {
	point := influxdb2_write.NewPointWithMeasurement(passMeasurement).
		AddTag("extension", i.session.Extension).
		AddTag("version", i.session.Version).
		AddTag("aborted", strconv.FormatBool(r.Aborted)).
		AddField("pass_id", r.PassID.String()).
		AddField("entities", r.Entities).
		AddField("held_entities", r.HeldEntities).
		AddField("items_considered", r.ItemsConsidered).
		AddField("orphans", r.Orphans).
		AddField("removed", r.Removed).
		AddField("skipped_invalid", r.SkippedInvalid).
		AddField("skipped_claimed", r.SkippedClaimed).
		AddField("steps", r.Steps).
		AddField("scan_ms", durationMs(r.ScanDuration)).
		AddField("expand_ms", durationMs(r.ExpandDuration)).
		AddField("resolve_ms", durationMs(r.ResolveDuration)).
		AddField("reclaim_ms", durationMs(r.ReclaimDuration)).
		AddField("total_ms", durationMs(r.TotalDuration)).
		SetTime(r.CompletedAt)

	if r.Reason != "" {
		point.AddField("reason", r.Reason)
	}

	return i.writePoint(point)
}

// writePoint writes a point to InfluxDB or the backup file.
func (i *Influx) writePoint(point *influxdb2_write.Point) error {
	if i.isValid {
		i.writer.WritePoint(point)
		return nil
	}

	if i.backupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Duration(1*time.Nanosecond))
	_, err := i.backupWriter.Write([]byte(lineProtocol + "\n"))
	if err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}

	return nil
}

// Close flushes pending writes and releases the client or backup file.
func (i *Influx) Close() error {
	if i.writer != nil {
		i.writer.Flush()
	}
	if i.client != nil {
		i.client.Close()
	}
	if i.backupWriter != nil {
		if err := i.backupWriter.Close(); err != nil {
			return fmt.Errorf("error closing backup writer: %v", err)
		}
		if err := i.backupFile.Close(); err != nil {
			return fmt.Errorf("error closing backup file: %v", err)
		}
	}
	return nil
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
