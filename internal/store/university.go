package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/TaichKarna/levlelup/types"
)

const universityColumns = `
	id, name, institution_type, affiliation, registration_number,
	year_of_establishment, website, logo, is_verified, rating_requested,
	report_score, report_summary, report_generated_at,
	created_at, updated_at`

// UniversityRepository handles persistence for universities, their
// stored documents, and report challenge history.
type UniversityRepository struct {
	db *sql.DB
}

func NewUniversityRepository(db *sql.DB) *UniversityRepository {
	return &UniversityRepository{db: db}
}

func (r *UniversityRepository) GetByID(ctx context.Context, id int) (types.University, error) {
	const query = `SELECT` + universityColumns + ` FROM universities WHERE id = $1`
	return scanUniversity(r.db.QueryRowContext(ctx, query, id))
}

func (r *UniversityRepository) GetByName(ctx context.Context, name string) (types.University, error) {
	const query = `SELECT` + universityColumns + ` FROM universities WHERE name = $1`
	return scanUniversity(r.db.QueryRowContext(ctx, query, name))
}

func (r *UniversityRepository) Create(ctx context.Context, uni types.University) (types.University, error) {
	now := time.Now()
	uni.CreatedAt = now
	uni.UpdatedAt = now

	const query = `
		INSERT INTO universities (
			name, institution_type, affiliation, registration_number,
			year_of_establishment, website, logo, is_verified,
			rating_requested, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		uni.Name,
		uni.InstitutionType,
		uni.Affiliation,
		uni.RegistrationNumber,
		uni.YearOfEstablishment,
		uni.Website,
		uni.Logo,
		uni.IsVerified,
		uni.RatingRequested,
		uni.CreatedAt,
		uni.UpdatedAt,
	).Scan(&uni.ID)
	if err != nil {
		return types.University{}, mapUniqueViolation(err)
	}
	return uni, nil
}

// SetVerified flips the admin verification flag for the named
// university.
func (r *UniversityRepository) SetVerified(ctx context.Context, name string) error {
	const query = `UPDATE universities SET is_verified = TRUE, updated_at = $2 WHERE name = $1`
	result, err := r.db.ExecContext(ctx, query, name, time.Now())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRatingRequested marks the university as awaiting a rating report.
// Returns ErrNotFound when the university does not exist and
// ErrDuplicate when a rating was already requested.
func (r *UniversityRepository) SetRatingRequested(ctx context.Context, id int) error {
	const query = `
		UPDATE universities
		SET rating_requested = TRUE, updated_at = $2
		WHERE id = $1 AND rating_requested = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrDuplicate
}

// SetReport stores a generated rating report.
func (r *UniversityRepository) SetReport(ctx context.Context, id int, report types.Report) error {
	const query = `
		UPDATE universities
		SET report_score = $2,
			report_summary = $3,
			report_generated_at = $4,
			updated_at = $5
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, report.Score, report.Summary, report.GeneratedAt, time.Now())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UniversityRepository) AddDocument(ctx context.Context, doc types.Document) (types.Document, error) {
	doc.UploadedAt = time.Now()

	const query = `
		INSERT INTO university_documents (
			university_id, kind, filename, object_key, url, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		doc.UniversityID,
		doc.Kind,
		doc.Filename,
		doc.Key,
		doc.URL,
		doc.UploadedAt,
	).Scan(&doc.ID)
	if err != nil {
		return types.Document{}, err
	}
	return doc, nil
}

func (r *UniversityRepository) ListDocuments(ctx context.Context, universityID int, kind string) ([]types.Document, error) {
	const query = `
		SELECT id, university_id, kind, filename, object_key, url, uploaded_at
		FROM university_documents
		WHERE university_id = $1 AND kind = $2
		ORDER BY uploaded_at, id`
	rows, err := r.db.QueryContext(ctx, query, universityID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(&doc.ID, &doc.UniversityID, &doc.Kind, &doc.Filename, &doc.Key, &doc.URL, &doc.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *UniversityRepository) GetDocument(ctx context.Context, universityID, docID int) (types.Document, error) {
	const query = `
		SELECT id, university_id, kind, filename, object_key, url, uploaded_at
		FROM university_documents
		WHERE id = $1 AND university_id = $2`
	var doc types.Document
	err := r.db.QueryRowContext(ctx, query, docID, universityID).Scan(
		&doc.ID, &doc.UniversityID, &doc.Kind, &doc.Filename, &doc.Key, &doc.URL, &doc.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Document{}, ErrNotFound
		}
		return types.Document{}, err
	}
	return doc, nil
}

func (r *UniversityRepository) DeleteDocument(ctx context.Context, universityID, docID int) error {
	const query = `DELETE FROM university_documents WHERE id = $1 AND university_id = $2`
	result, err := r.db.ExecContext(ctx, query, docID, universityID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UniversityRepository) AddChallenge(ctx context.Context, challenge types.Challenge) (types.Challenge, error) {
	challenge.ChallengedAt = time.Now()
	challenge.Status = types.ChallengeStatusPending

	const query = `
		INSERT INTO report_challenges (university_id, reason, status, challenged_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		challenge.UniversityID,
		challenge.Reason,
		challenge.Status,
		challenge.ChallengedAt,
	).Scan(&challenge.ID)
	if err != nil {
		return types.Challenge{}, err
	}
	return challenge, nil
}

func (r *UniversityRepository) ListChallenges(ctx context.Context, universityID int) ([]types.Challenge, error) {
	const query = `
		SELECT id, university_id, reason, status, response, challenged_at, responded_at
		FROM report_challenges
		WHERE university_id = $1
		ORDER BY challenged_at, id`
	rows, err := r.db.QueryContext(ctx, query, universityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChallenges(rows)
}

// ListChallenged returns universities that have at least one report
// challenge on record.
func (r *UniversityRepository) ListChallenged(ctx context.Context) ([]types.University, error) {
	const query = `
		SELECT` + universityColumns + `
		FROM universities
		WHERE id IN (SELECT university_id FROM report_challenges)
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var unis []types.University
	for rows.Next() {
		uni, err := scanUniversity(rows)
		if err != nil {
			return nil, err
		}
		unis = append(unis, uni)
	}
	return unis, rows.Err()
}

// RespondToChallenge records an admin response on a challenge.
func (r *UniversityRepository) RespondToChallenge(ctx context.Context, challengeID int, response, status string) error {
	const query = `
		UPDATE report_challenges
		SET response = $2, status = $3, responded_at = $4
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, challengeID, response, status, time.Now())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func collectChallenges(rows *sql.Rows) ([]types.Challenge, error) {
	var challenges []types.Challenge
	for rows.Next() {
		var (
			challenge   types.Challenge
			response    sql.NullString
			respondedAt sql.NullTime
		)
		if err := rows.Scan(
			&challenge.ID,
			&challenge.UniversityID,
			&challenge.Reason,
			&challenge.Status,
			&response,
			&challenge.ChallengedAt,
			&respondedAt,
		); err != nil {
			return nil, err
		}
		challenge.Response = response.String
		if respondedAt.Valid {
			t := respondedAt.Time
			challenge.RespondedAt = &t
		}
		challenges = append(challenges, challenge)
	}
	return challenges, rows.Err()
}

func scanUniversity(row interface{ Scan(dest ...any) error }) (types.University, error) {
	var (
		uni         types.University
		score       sql.NullInt64
		summary     sql.NullString
		generatedAt sql.NullTime
	)
	err := row.Scan(
		&uni.ID,
		&uni.Name,
		&uni.InstitutionType,
		&uni.Affiliation,
		&uni.RegistrationNumber,
		&uni.YearOfEstablishment,
		&uni.Website,
		&uni.Logo,
		&uni.IsVerified,
		&uni.RatingRequested,
		&score,
		&summary,
		&generatedAt,
		&uni.CreatedAt,
		&uni.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.University{}, ErrNotFound
		}
		return types.University{}, err
	}
	if score.Valid {
		uni.Report = &types.Report{
			Score:       int(score.Int64),
			Summary:     summary.String,
			GeneratedAt: generatedAt.Time,
		}
	}
	return uni, nil
}
