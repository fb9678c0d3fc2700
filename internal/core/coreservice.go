// Package core wires storage, classification, remedies, accounts and sessions
// into the prediction-and-persistence workflow and exposes it to the API
// layer.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jo-hoe/retiscan/internal/backend/auth"
	"github.com/jo-hoe/retiscan/internal/backend/classifier"
	"github.com/jo-hoe/retiscan/internal/backend/database"
	"github.com/jo-hoe/retiscan/internal/backend/remedy"
	"github.com/jo-hoe/retiscan/internal/backend/storage"
)

type CoreService struct {
	config           *ServiceConfig
	databaseService  database.DatabaseService
	imageStore       *storage.ImageStore
	classifier       classifier.Service
	remedies         *remedy.Table
	authService      *auth.Service
	sessions         *auth.SessionStore
	inferenceTimeout time.Duration
}

// AnalysisResult is the outcome of one completed classification, including
// the durable record id and the advisory for the predicted class.
type AnalysisResult struct {
	RecordID   string             `json:"record_id"`
	ImagePath  string             `json:"image_path"`
	Class      string             `json:"class"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float32 `json:"scores"`
	Advisory   string             `json:"advisory"`
	CreatedAt  time.Time          `json:"created_at"`
}

// HistoryEntry joins a stored prediction record with its advisory text.
type HistoryEntry struct {
	Record   *database.PredictionRecord `json:"record"`
	Advisory string                     `json:"advisory"`
}

// NewCoreService initializes every collaborator during explicit startup.
// A missing model artifact, remedy table or unreachable database fails here
// with a descriptive error instead of surfacing later mid-request.
func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized", "type", config.Database.Type)

	imageStore, err := storage.NewImageStore(config.Storage.Root, config.Storage.ThumbnailMaxEdge)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}

	onnxClassifier, err := classifier.NewONNXClassifier(config.Model.Path, config.Model.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize classifier: %w", err)
	}
	slog.Info("classifier initialized", "model", config.Model.Path, "classes", onnxClassifier.Meta().Classes)

	remedies, err := remedy.Load(config.Remedies.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load remedy table: %w", err)
	}

	sessionClient := redis.NewClient(&redis.Options{Addr: config.Session.RedisAddress})
	sessions := auth.NewSessionStore(sessionClient, time.Duration(config.Session.TTLMinutes)*time.Minute)

	return NewCoreServiceWithComponents(config, databaseService, imageStore, onnxClassifier, remedies, sessions), nil
}

// NewCoreServiceWithComponents assembles a core service from pre-built
// collaborators. Tests use it to substitute a stub classifier.
func NewCoreServiceWithComponents(
	config *ServiceConfig,
	databaseService database.DatabaseService,
	imageStore *storage.ImageStore,
	classifierService classifier.Service,
	remedies *remedy.Table,
	sessions *auth.SessionStore,
) *CoreService {
	return &CoreService{
		config:           config,
		databaseService:  databaseService,
		imageStore:       imageStore,
		classifier:       classifierService,
		remedies:         remedies,
		authService:      auth.NewService(databaseService),
		sessions:         sessions,
		inferenceTimeout: time.Duration(config.Model.TimeoutSeconds) * time.Second,
	}
}

// Analyze runs the full workflow for one upload: persist the image, build the
// input tensor, classify, and write the immutable prediction record. When any
// stage after ingestion fails, the stored image is removed again so a failed
// analysis leaves no state behind.
func (service *CoreService) Analyze(ctx context.Context, userID, suggestedName string, data []byte) (*AnalysisResult, error) {
	imagePath, err := service.imageStore.Store(data, suggestedName)
	if err != nil {
		return nil, err
	}

	result, err := service.classifyStored(ctx, imagePath)
	if err != nil {
		service.discardImage(imagePath)
		return nil, err
	}

	record := &database.PredictionRecord{
		UserID:         userID,
		ImagePath:      imagePath,
		PredictedClass: result.Class,
		Confidence:     float64(result.Confidence),
	}
	if err := service.databaseService.CreatePrediction(record); err != nil {
		service.discardImage(imagePath)
		return nil, err
	}

	slog.Info("analysis complete",
		"user_id", userID, "record_id", record.ID,
		"class", record.PredictedClass, "confidence", record.Confidence)

	return &AnalysisResult{
		RecordID:   record.ID,
		ImagePath:  imagePath,
		Class:      record.PredictedClass,
		Confidence: record.Confidence,
		Scores:     result.Scores,
		Advisory:   service.remedies.Lookup(record.PredictedClass),
		CreatedAt:  record.CreatedAt,
	}, nil
}

func (service *CoreService) classifyStored(ctx context.Context, imagePath string) (*classifier.Result, error) {
	tensor, err := classifier.Prepare(imagePath, service.classifier.Meta())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, service.inferenceTimeout)
	defer cancel()

	return service.classifier.Classify(ctx, tensor)
}

func (service *CoreService) discardImage(imagePath string) {
	if err := service.imageStore.Remove(imagePath); err != nil {
		slog.Warn("failed to remove image after failed analysis", "path", imagePath, "error", err)
	}
}

// History lists a user's predictions newest first, each joined with the
// advisory for its class. A user with no predictions gets an empty list.
func (service *CoreService) History(userID string) ([]HistoryEntry, error) {
	records, err := service.databaseService.PredictionsByUser(userID)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, HistoryEntry{
			Record:   record,
			Advisory: service.remedies.Lookup(record.PredictedClass),
		})
	}
	return entries, nil
}

// RecordImage returns the original image of one of the user's own records.
func (service *CoreService) RecordImage(userID, recordID string) ([]byte, error) {
	record, err := service.ownedRecord(userID, recordID)
	if err != nil {
		return nil, err
	}
	return service.imageStore.Read(record.ImagePath)
}

// RecordThumbnail returns a bounded PNG thumbnail of one of the user's own
// records.
func (service *CoreService) RecordThumbnail(userID, recordID string) ([]byte, error) {
	record, err := service.ownedRecord(userID, recordID)
	if err != nil {
		return nil, err
	}
	return service.imageStore.Thumbnail(record.ImagePath)
}

func (service *CoreService) ownedRecord(userID, recordID string) (*database.PredictionRecord, error) {
	record, err := service.databaseService.PredictionByID(recordID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.UserID != userID {
		return nil, fmt.Errorf("no prediction record %s for this user", recordID)
	}
	return record, nil
}

func (service *CoreService) SignUp(username, email, password, confirmPassword, fullName string) (*database.User, error) {
	return service.authService.CreateUser(username, email, password, confirmPassword, fullName)
}

// LogIn authenticates and mints a session token.
func (service *CoreService) LogIn(ctx context.Context, username, password string) (string, *database.User, error) {
	user, err := service.authService.Authenticate(username, password)
	if err != nil {
		return "", nil, err
	}
	token, err := service.sessions.Create(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (service *CoreService) LogOut(ctx context.Context, token string) error {
	return service.sessions.Delete(ctx, token)
}

// ResolveSession maps a bearer token to a user id.
func (service *CoreService) ResolveSession(ctx context.Context, token string) (string, error) {
	return service.sessions.Resolve(ctx, token)
}

func (service *CoreService) Profile(userID string) (*database.User, error) {
	return service.authService.UserByID(userID)
}

func (service *CoreService) UpdateProfile(userID, email, fullName string) error {
	return service.authService.UpdateProfile(userID, email, fullName)
}

// Classes returns the fixed severity class enumeration from the model
// metadata.
func (service *CoreService) Classes() []string {
	return service.classifier.Meta().Classes
}

func (service *CoreService) Close() error {
	service.classifier.Close()
	return service.databaseService.Close()
}
