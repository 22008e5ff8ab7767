package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"civilregistry/internal/models"
	"civilregistry/internal/storage"
)

const citizenColumns = `national_id, first_name, father_name, grandfather_name, last_name,
	gender, date_of_birth, is_deceased, death_date, social_status, region, city, address`

// InsertCitizen adds one row to the local citizens table.
func (s *Store) InsertCitizen(ctx context.Context, c models.Citizen) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO citizens (`+citizenColumns+`)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''),
			NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''))`,
		c.NationalID, c.FirstName, c.FatherName, c.GrandfatherName, c.LastName,
		string(c.Gender), c.DateOfBirth, c.IsDeceased, c.DeathDate,
		c.SocialStatus, c.Region, c.City, c.Address)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert citizen: %w", err)
	}
	return nil
}

// SearchCitizens uses ILIKE so name matching ignores case as it does on
// sqlite.
func (s *Store) SearchCitizens(ctx context.Context, q models.CitizenQuery) ([]models.Citizen, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.NationalID != "" {
		add("national_id = $%d", q.NationalID)
	}
	for _, f := range []struct{ column, value string }{
		{"first_name", q.FirstName},
		{"father_name", q.FatherName},
		{"grandfather_name", q.GrandfatherName},
		{"last_name", q.LastName},
	} {
		if f.value != "" {
			add(f.column+` ILIKE $%d ESCAPE '\'`, storage.LikePattern(f.value))
		}
	}
	if len(where) == 0 {
		return []models.Citizen{}, nil
	}

	query := `SELECT national_id, first_name, father_name, grandfather_name, last_name,
		COALESCE(gender, ''), COALESCE(date_of_birth, ''), is_deceased, COALESCE(death_date, ''),
		COALESCE(social_status, ''), COALESCE(region, ''), COALESCE(city, ''), COALESCE(address, '')
		FROM citizens WHERE ` + strings.Join(where, " AND ") + " ORDER BY id"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search citizens: %w", err)
	}
	defer rows.Close()

	citizens := []models.Citizen{}
	for rows.Next() {
		var (
			c      models.Citizen
			gender string
		)
		if err := rows.Scan(&c.NationalID, &c.FirstName, &c.FatherName, &c.GrandfatherName, &c.LastName,
			&gender, &c.DateOfBirth, &c.IsDeceased, &c.DeathDate,
			&c.SocialStatus, &c.Region, &c.City, &c.Address); err != nil {
			return nil, fmt.Errorf("scan citizen: %w", err)
		}
		c.Gender = models.Gender(gender)
		citizens = append(citizens, c)
	}
	return citizens, rows.Err()
}
