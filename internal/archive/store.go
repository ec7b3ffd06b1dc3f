// Package archive keeps call artifacts in S3: closed conversation records,
// fetched recordings and synthesized prompt audio.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/wolfman30/voice-agent/internal/conversation"
	"github.com/wolfman30/voice-agent/internal/transcription"
	"github.com/wolfman30/voice-agent/pkg/logging"
)

const presignTTL = 15 * time.Minute

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Presigner is satisfied by *s3.PresignClient.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store writes call artifacts to one bucket. A Store with no bucket is a
// no-op for archival; PublishAudio then fails because the carrier needs a URL.
type Store struct {
	bucket    string
	s3Client  S3API
	presigner Presigner
	logger    *logging.Logger
	now       func() time.Time
}

var (
	_ conversation.Listener       = (*Store)(nil)
	_ transcription.RecordingSink = (*Store)(nil)
)

// NewStore creates an archive Store.
func NewStore(s3Client S3API, presigner Presigner, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		bucket:    bucket,
		s3Client:  s3Client,
		presigner: presigner,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// NewRecord builds the archived form of c with PII scrubbed from the transcript.
func NewRecord(c conversation.Conversation, archivedAt time.Time) *ConversationRecord {
	rec := &ConversationRecord{
		Version:        "1.0",
		ConversationID: c.ID,
		ExternalID:     c.ExternalID,
		PhoneHash:      HashPhone(c.Phone),
		Direction:      string(c.Direction),
		Locale:         c.Locale,
		StartTS:        c.StartTS,
		EndTS:          c.EndTS,
		Transcript:     ScrubTranscript(c.Transcript),
		ArchivedAt:     archivedAt,
	}
	for _, l := range c.Intents {
		rec.Intents = append(rec.Intents, string(l))
	}
	if c.EndTS != nil {
		rec.DurationSeconds = int(c.EndTS.Sub(c.StartTS).Seconds())
	}
	return rec
}

// ArchiveConversation writes a ConversationRecord as JSON to S3 and appends to the manifest.
func (s *Store) ArchiveConversation(ctx context.Context, record *ConversationRecord) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	now := record.ArchivedAt
	if now.IsZero() {
		now = s.now()
	}
	key := fmt.Sprintf("conversations/v1/by-date/%d/%02d/%02d/%d.json",
		now.Year(), now.Month(), now.Day(), record.ConversationID)

	if err := s.put(ctx, key, data, "application/json"); err != nil {
		return err
	}
	s.logger.Info("archived conversation to S3", "conversation_id", record.ConversationID, "s3_key", key)

	entry := ManifestEntry{
		ConversationID: record.ConversationID,
		S3Key:          key,
		Direction:      record.Direction,
		ArchivedAt:     now.Format(time.RFC3339),
	}
	if n := len(record.Intents); n > 0 {
		entry.Intent = record.Intents[n-1]
	}
	if err := s.AppendManifest(ctx, entry); err != nil {
		// the record itself is already stored
		s.logger.Warn("failed to append manifest", "error", err, "conversation_id", record.ConversationID)
	}
	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// S3 has no append, so this is read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := s.now()
	manifestKey := fmt.Sprintf("conversations/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(getResp.Body)
		getResp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	return s.put(ctx, manifestKey, buf.Bytes(), "application/x-ndjson")
}

// SaveRecording stores fetched call audio under recordings/, keyed by a
// hash of its source URL so refetches overwrite rather than accumulate.
func (s *Store) SaveRecording(ctx context.Context, audio transcription.Audio) error {
	if !s.Enabled() {
		return nil
	}
	sum := sha256.Sum256([]byte(audio.SourceURL))
	ext := path.Ext(audio.Filename)
	if ext == "" {
		ext = ".bin"
	}
	now := s.now()
	key := fmt.Sprintf("recordings/%d/%02d/%x%s", now.Year(), now.Month(), sum[:12], ext)
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.put(ctx, key, audio.Data, contentType)
}

// PublishAudio uploads synthesized audio and returns a short-lived
// presigned GET URL.
func (s *Store) PublishAudio(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if !s.Enabled() || s.presigner == nil {
		return "", errors.New("archive: bucket not configured for prompt audio")
	}
	if err := s.put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return "", fmt.Errorf("archive: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// ConversationClosed archives the closed conversation. Failures are logged.
func (s *Store) ConversationClosed(ctx context.Context, c conversation.Conversation) {
	if !s.Enabled() {
		return
	}
	if err := s.ArchiveConversation(ctx, NewRecord(c, s.now())); err != nil {
		s.logger.Error("archive conversation failed", "conversation_id", c.ID, "error", err)
	}
}

func (s *Store) TicketReconciled(context.Context, conversation.Conversation, conversation.TicketOutcome) {}

func (s *Store) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}
