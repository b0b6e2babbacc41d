package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path"
	"time"

	"github.com/TaichKarna/levlelup/internal/storage"
	"github.com/TaichKarna/levlelup/types"
	"github.com/google/uuid"
)

const (
	reportScoreCeiling     = 100
	reportExcellentCutoff  = 70
	reportExcellentSummary = "Excellent University"
	reportPoorSummary      = "Needs Improvement"
)

// UniversityRepository defines persistence operations for
// universities, documents, and challenges.
type UniversityRepository interface {
	GetByID(ctx context.Context, id int) (types.University, error)
	GetByName(ctx context.Context, name string) (types.University, error)
	Create(ctx context.Context, uni types.University) (types.University, error)
	SetVerified(ctx context.Context, name string) error
	SetRatingRequested(ctx context.Context, id int) error
	SetReport(ctx context.Context, id int, report types.Report) error
	AddDocument(ctx context.Context, doc types.Document) (types.Document, error)
	ListDocuments(ctx context.Context, universityID int, kind string) ([]types.Document, error)
	GetDocument(ctx context.Context, universityID, docID int) (types.Document, error)
	DeleteDocument(ctx context.Context, universityID, docID int) error
	AddChallenge(ctx context.Context, challenge types.Challenge) (types.Challenge, error)
	ListChallenges(ctx context.Context, universityID int) ([]types.Challenge, error)
	ListChallenged(ctx context.Context) ([]types.University, error)
	RespondToChallenge(ctx context.Context, challengeID int, response, status string) error
}

// UniversityService encapsulates the university document, rating, and
// challenge use-cases.
type UniversityService struct {
	repo    UniversityRepository
	storage *storage.Storage
	baseURL string
}

// NewUniversityService constructs the service. baseURL is the public
// prefix under which stored objects are reachable.
func NewUniversityService(repo UniversityRepository, store *storage.Storage, baseURL string) *UniversityService {
	return &UniversityService{repo: repo, storage: store, baseURL: baseURL}
}

func (s *UniversityService) GetByID(ctx context.Context, id int) (types.University, error) {
	return s.repo.GetByID(ctx, id)
}

// Verify flips the admin verification flag for the named university.
func (s *UniversityService) Verify(ctx context.Context, name string) error {
	return s.repo.SetVerified(ctx, name)
}

// Upload carries one file of a multipart upload.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// StoreDocument writes the upload to object storage and records it
// for the university. kind selects the documents/ or infrastructure/
// prefix.
func (s *UniversityService) StoreDocument(ctx context.Context, universityID int, kind string, up Upload) (types.Document, error) {
	prefix := "documents"
	if kind == types.DocumentKindInfrastructure {
		prefix = "infrastructure"
	}
	key := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), path.Ext(up.Filename))

	if err := s.storage.Put(ctx, key, up.Body, up.Size, up.ContentType); err != nil {
		return types.Document{}, err
	}

	doc, err := s.repo.AddDocument(ctx, types.Document{
		UniversityID: universityID,
		Kind:         kind,
		Filename:     up.Filename,
		Key:          key,
		URL:          fmt.Sprintf("%s/%s/%s", s.baseURL, s.storage.Bucket(), key),
	})
	if err != nil {
		// Keep storage consistent with the database.
		_ = s.storage.Delete(ctx, key)
		return types.Document{}, err
	}
	return doc, nil
}

func (s *UniversityService) ListDocuments(ctx context.Context, universityID int, kind string) ([]types.Document, error) {
	return s.repo.ListDocuments(ctx, universityID, kind)
}

// OpenDocument opens a reader over the stored object for streaming
// back to the client.
func (s *UniversityService) OpenDocument(ctx context.Context, universityID, docID int) (types.Document, io.ReadCloser, error) {
	doc, err := s.repo.GetDocument(ctx, universityID, docID)
	if err != nil {
		return types.Document{}, nil, err
	}
	body, err := s.storage.Get(ctx, doc.Key)
	if err != nil {
		return types.Document{}, nil, err
	}
	return doc, body, nil
}

// DeleteDocument removes the stored object first, then the record.
func (s *UniversityService) DeleteDocument(ctx context.Context, universityID, docID int) error {
	doc, err := s.repo.GetDocument(ctx, universityID, docID)
	if err != nil {
		return err
	}
	if doc.Key != "" {
		if err := s.storage.Delete(ctx, doc.Key); err != nil {
			return err
		}
	}
	return s.repo.DeleteDocument(ctx, universityID, docID)
}

// RequestRating marks the university as awaiting a rating report.
// A second request returns store.ErrDuplicate.
func (s *UniversityService) RequestRating(ctx context.Context, universityID int) error {
	return s.repo.SetRatingRequested(ctx, universityID)
}

// GenerateReport produces a rating report for the university. The
// scoring model is simulated for now.
// TODO: replace the random score with the real rating pipeline once
// the evaluation service ships.
func (s *UniversityService) GenerateReport(ctx context.Context, universityID int) (types.Report, error) {
	score := rand.Intn(reportScoreCeiling) + 1
	summary := reportPoorSummary
	if score > reportExcellentCutoff {
		summary = reportExcellentSummary
	}
	report := types.Report{
		Score:       score,
		Summary:     summary,
		GeneratedAt: time.Now(),
	}
	if err := s.repo.SetReport(ctx, universityID, report); err != nil {
		return types.Report{}, err
	}
	return report, nil
}

// ChallengeReport files a dispute against the current report.
func (s *UniversityService) ChallengeReport(ctx context.Context, universityID int, reason string) (types.Challenge, error) {
	uni, err := s.repo.GetByID(ctx, universityID)
	if err != nil {
		return types.Challenge{}, err
	}
	if uni.Report == nil {
		return types.Challenge{}, ErrNoReport
	}
	return s.repo.AddChallenge(ctx, types.Challenge{
		UniversityID: universityID,
		Reason:       reason,
	})
}

// ChallengedUniversity pairs a university with its challenge history
// for the admin review screen.
type ChallengedUniversity struct {
	University types.University  `json:"university"`
	Challenges []types.Challenge `json:"challenges"`
}

// ListChallenged returns every university with at least one filed
// challenge, including the history.
func (s *UniversityService) ListChallenged(ctx context.Context) ([]ChallengedUniversity, error) {
	unis, err := s.repo.ListChallenged(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]ChallengedUniversity, 0, len(unis))
	for _, uni := range unis {
		challenges, err := s.repo.ListChallenges(ctx, uni.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, ChallengedUniversity{University: uni, Challenges: challenges})
	}
	return result, nil
}

// RespondToChallenge records the admin's decision on a challenge.
func (s *UniversityService) RespondToChallenge(ctx context.Context, challengeID int, response, status string) error {
	if status != types.ChallengeStatusResolved && status != types.ChallengeStatusRejected {
		return errors.New("status must be Resolved or Rejected")
	}
	return s.repo.RespondToChallenge(ctx, challengeID, response, status)
}
