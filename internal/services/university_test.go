package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/TaichKarna/levlelup/internal/storage"
	"github.com/TaichKarna/levlelup/internal/store"
	"github.com/TaichKarna/levlelup/types"
)

func newUniversityService() (*UniversityService, *fakeUniversityRepo, *fakeObjectStorage) {
	repo := newFakeUniversityRepo()
	objects := newFakeObjectStorage()
	svc := NewUniversityService(repo, storage.NewStorage(objects), "https://cdn.example")
	return svc, repo, objects
}

func seedUniversity(t *testing.T, repo *fakeUniversityRepo) types.University {
	t.Helper()
	uni, err := repo.Create(context.Background(), types.University{
		Name:            "Test University",
		InstitutionType: "Private",
		IsVerified:      true,
	})
	if err != nil {
		t.Fatalf("seed university: %v", err)
	}
	return uni
}

func TestStoreDocument(t *testing.T) {
	svc, repo, objects := newUniversityService()
	uni := seedUniversity(t, repo)
	ctx := context.Background()

	doc, err := svc.StoreDocument(ctx, uni.ID, types.DocumentKindDocument, Upload{
		Filename:    "accreditation.pdf",
		ContentType: "application/pdf",
		Size:        4,
		Body:        strings.NewReader("%PDF"),
	})
	if err != nil {
		t.Fatalf("store document: %v", err)
	}
	if !strings.HasPrefix(doc.Key, "documents/") {
		t.Fatalf("unexpected key: %q", doc.Key)
	}
	if !strings.HasSuffix(doc.Key, ".pdf") {
		t.Fatalf("extension not preserved: %q", doc.Key)
	}
	if !strings.HasPrefix(doc.URL, "https://cdn.example/test-bucket/") {
		t.Fatalf("unexpected URL: %q", doc.URL)
	}
	if _, ok := objects.objects[doc.Key]; !ok {
		t.Fatal("object not written to storage")
	}

	infra, err := svc.StoreDocument(ctx, uni.ID, types.DocumentKindInfrastructure, Upload{
		Filename: "campus.jpg",
		Size:     3,
		Body:     strings.NewReader("img"),
	})
	if err != nil {
		t.Fatalf("store infrastructure image: %v", err)
	}
	if !strings.HasPrefix(infra.Key, "infrastructure/") {
		t.Fatalf("unexpected key: %q", infra.Key)
	}
}

func TestOpenDocumentStreamsStoredBytes(t *testing.T) {
	svc, repo, _ := newUniversityService()
	uni := seedUniversity(t, repo)
	ctx := context.Background()

	doc, err := svc.StoreDocument(ctx, uni.ID, types.DocumentKindDocument, Upload{
		Filename: "notes.txt",
		Size:     5,
		Body:     strings.NewReader("hello"),
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	got, body, err := svc.OpenDocument(ctx, uni.ID, doc.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer body.Close()
	if got.Filename != "notes.txt" {
		t.Fatalf("unexpected filename: %q", got.Filename)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected body: %q", data)
	}

	// Another university cannot reach the document.
	if _, _, err := svc.OpenDocument(ctx, uni.ID+1, doc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDocumentRemovesObject(t *testing.T) {
	svc, repo, objects := newUniversityService()
	uni := seedUniversity(t, repo)
	ctx := context.Background()

	doc, err := svc.StoreDocument(ctx, uni.ID, types.DocumentKindDocument, Upload{
		Filename: "old.pdf",
		Size:     1,
		Body:     strings.NewReader("x"),
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := svc.DeleteDocument(ctx, uni.ID, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := objects.objects[doc.Key]; ok {
		t.Fatal("object still in storage after delete")
	}
	if _, err := repo.GetDocument(ctx, uni.ID, doc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("record still present: %v", err)
	}
}

func TestRequestRatingOnlyOnce(t *testing.T) {
	svc, repo, _ := newUniversityService()
	uni := seedUniversity(t, repo)
	ctx := context.Background()

	if err := svc.RequestRating(ctx, uni.ID); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := svc.RequestRating(ctx, uni.ID); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on second request, got %v", err)
	}
	if err := svc.RequestRating(ctx, uni.ID+1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown university, got %v", err)
	}
}

func TestGenerateReport(t *testing.T) {
	svc, repo, _ := newUniversityService()
	uni := seedUniversity(t, repo)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		report, err := svc.GenerateReport(ctx, uni.ID)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if report.Score < 1 || report.Score > 100 {
			t.Fatalf("score out of range: %d", report.Score)
		}
		want := reportPoorSummary
		if report.Score > reportExcellentCutoff {
			want = reportExcellentSummary
		}
		if report.Summary != want {
			t.Fatalf("score %d: summary %q, want %q", report.Score, report.Summary, want)
		}
	}

	stored, err := repo.GetByID(ctx, uni.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Report == nil {
		t.Fatal("report not persisted")
	}
}

func TestChallengeReportRequiresReport(t *testing.T) {
	svc, repo, _ := newUniversityService()
	uni := seedUniversity(t, repo)
	ctx := context.Background()

	if _, err := svc.ChallengeReport(ctx, uni.ID, "score too low"); !errors.Is(err, ErrNoReport) {
		t.Fatalf("expected ErrNoReport, got %v", err)
	}

	if _, err := svc.GenerateReport(ctx, uni.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	challenge, err := svc.ChallengeReport(ctx, uni.ID, "score too low")
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if challenge.Status != types.ChallengeStatusPending {
		t.Fatalf("unexpected status: %q", challenge.Status)
	}
}

func TestListChallengedIncludesHistory(t *testing.T) {
	svc, repo, _ := newUniversityService()
	uni := seedUniversity(t, repo)
	ctx := context.Background()

	if _, err := svc.GenerateReport(ctx, uni.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.ChallengeReport(ctx, uni.ID, "first dispute"); err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if _, err := svc.ChallengeReport(ctx, uni.ID, "second dispute"); err != nil {
		t.Fatalf("challenge: %v", err)
	}

	challenged, err := svc.ListChallenged(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(challenged) != 1 {
		t.Fatalf("expected one university, got %d", len(challenged))
	}
	if challenged[0].University.ID != uni.ID {
		t.Fatalf("unexpected university: %d", challenged[0].University.ID)
	}
	if len(challenged[0].Challenges) != 2 {
		t.Fatalf("expected two challenges, got %d", len(challenged[0].Challenges))
	}
}

func TestRespondToChallenge(t *testing.T) {
	svc, repo, _ := newUniversityService()
	uni := seedUniversity(t, repo)
	ctx := context.Background()

	if _, err := svc.GenerateReport(ctx, uni.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	challenge, err := svc.ChallengeReport(ctx, uni.ID, "dispute")
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	if err := svc.RespondToChallenge(ctx, challenge.ID, "reviewed", "Maybe"); err == nil {
		t.Fatal("expected rejection of unknown status")
	}
	if err := svc.RespondToChallenge(ctx, challenge.ID, "score stands", types.ChallengeStatusRejected); err != nil {
		t.Fatalf("respond: %v", err)
	}

	list, err := repo.ListChallenges(ctx, uni.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list[0].Status != types.ChallengeStatusRejected {
		t.Fatalf("status not updated: %q", list[0].Status)
	}
	if list[0].Response != "score stands" {
		t.Fatalf("response not recorded: %q", list[0].Response)
	}
	if list[0].RespondedAt == nil {
		t.Fatal("responded_at not set")
	}
}
