package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// CloudWatch Logs limits
const (
	maxEventsPerRequest = 10000
	maxEventBytes       = 256000
)

type SinkConfig struct {
	LogGroupName    string
	LogStreamName   string
	Region          string
	Endpoint        string // optional override (LocalStack)
	AccessKeyID     string
	SecretAccessKey string
	BufferSize      int
	FlushInterval   time.Duration
	AutoCreate      bool
}

// Sink ships access records to CloudWatch Logs in batches.
type Sink struct {
	client    *cloudwatchlogs.Client
	group     string
	stream    string
	batchSize int

	mu     sync.Mutex
	buffer []types.InputLogEvent

	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	logger      *logger.Logger
}

func NewSink(ctx context.Context, cfg SinkConfig, log *logger.Logger) (*Sink, error) {
	if cfg.LogGroupName == "" {
		return nil, fmt.Errorf("log group name is required")
	}
	if cfg.LogStreamName == "" {
		return nil, fmt.Errorf("log stream name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 50
	}
	if cfg.BufferSize > maxEventsPerRequest {
		cfg.BufferSize = maxEventsPerRequest
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := cloudwatchlogs.NewFromConfig(awsCfg, func(options *cloudwatchlogs.Options) {
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	s := &Sink{
		client:      client,
		group:       cfg.LogGroupName,
		stream:      cfg.LogStreamName,
		batchSize:   cfg.BufferSize,
		buffer:      make([]types.InputLogEvent, 0, cfg.BufferSize),
		flushTicker: time.NewTicker(cfg.FlushInterval),
		stopCh:      make(chan struct{}),
		logger:      log,
	}

	if cfg.AutoCreate {
		if err := s.ensureLogGroupAndStream(ctx); err != nil {
			return nil, fmt.Errorf("failed to create log group/stream: %w", err)
		}
	}

	s.wg.Add(1)
	go s.flushLoop()

	return s, nil
}

// Publish buffers one record; a full buffer flushes inline.
func (s *Sink) Publish(ctx context.Context, record port.AccessRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal access record: %w", err)
	}
	if len(data) > maxEventBytes {
		return fmt.Errorf("access record exceeds CloudWatch event size limit: %d bytes", len(data))
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, types.InputLogEvent{
		Message:   aws.String(string(data)),
		Timestamp: aws.Int64(record.OccurredAt.UnixMilli()),
	})
	full := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// PublishEntry ships one process log entry through the same buffer as
// access records. Implements logger.LogPublisher.
func (s *Sink) PublishEntry(ctx context.Context, entry logger.LogEntry) error {
	data, err := json.Marshal(struct {
		Timestamp time.Time              `json:"timestamp"`
		Level     string                 `json:"level"`
		Message   string                 `json:"message"`
		Fields    map[string]interface{} `json:"fields,omitempty"`
	}{entry.Timestamp, entry.Level, entry.Message, entry.Fields})
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, types.InputLogEvent{
		Message:   aws.String(string(data)),
		Timestamp: aws.Int64(entry.Timestamp.UnixMilli()),
	})
	full := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Flush ships all buffered events.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.buffer
	s.buffer = make([]types.InputLogEvent, 0, s.batchSize)
	s.mu.Unlock()

	// CloudWatch requires chronological order within a batch.
	sort.Slice(batch, func(i, j int) bool {
		return aws.ToInt64(batch[i].Timestamp) < aws.ToInt64(batch[j].Timestamp)
	})

	_, err := s.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(s.group),
		LogStreamName: aws.String(s.stream),
		LogEvents:     batch,
	})
	if err != nil {
		return fmt.Errorf("failed to put log events: %w", err)
	}

	s.logger.Debug("CloudWatch batch shipped", "events", len(batch))
	return nil
}

// Close stops the background flusher. Flush first to avoid losing the tail.
func (s *Sink) Close() error {
	close(s.stopCh)
	s.flushTicker.Stop()
	s.wg.Wait()
	return nil
}

func (s *Sink) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("CloudWatch periodic flush failed", "error", err.Error())
			}
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sink) ensureLogGroupAndStream(ctx context.Context) error {
	_, err := s.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(s.group),
	})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create log group: %w", err)
	}

	_, err = s.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(s.group),
		LogStreamName: aws.String(s.stream),
	})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create log stream: %w", err)
	}

	return nil
}

func isAlreadyExists(err error) bool {
	var exists *types.ResourceAlreadyExistsException
	return errors.As(err, &exists)
}
