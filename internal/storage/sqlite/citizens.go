package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"civilregistry/internal/models"
	"civilregistry/internal/storage"
)

const citizenColumns = `national_id, first_name, father_name, grandfather_name, last_name,
	gender, date_of_birth, is_deceased, death_date, social_status, region, city, address`

func (s *Store) InsertCitizen(ctx context.Context, c models.Citizen) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO citizens (`+citizenColumns+`, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.NationalID, c.FirstName, c.FatherName, c.GrandfatherName, c.LastName,
		nullString(string(c.Gender)), nullString(c.DateOfBirth), c.IsDeceased, nullString(c.DeathDate),
		nullString(c.SocialStatus), nullString(c.Region), nullString(c.City), nullString(c.Address),
		time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert citizen: %w", err)
	}
	return nil
}

func (s *Store) SearchCitizens(ctx context.Context, q models.CitizenQuery) ([]models.Citizen, error) {
	var (
		where []string
		args  []any
	)
	if q.NationalID != "" {
		where = append(where, "national_id = ?")
		args = append(args, q.NationalID)
	}
	for _, f := range []struct{ column, value string }{
		{"first_name", q.FirstName},
		{"father_name", q.FatherName},
		{"grandfather_name", q.GrandfatherName},
		{"last_name", q.LastName},
	} {
		if f.value != "" {
			where = append(where, f.column+` LIKE ? ESCAPE '\'`)
			args = append(args, storage.LikePattern(f.value))
		}
	}
	if len(where) == 0 {
		return []models.Citizen{}, nil
	}

	query := "SELECT " + citizenColumns + " FROM citizens WHERE " + strings.Join(where, " AND ") + " ORDER BY id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search citizens: %w", err)
	}
	defer rows.Close()

	citizens := []models.Citizen{}
	for rows.Next() {
		var (
			c                             models.Citizen
			gender, birth, death          sql.NullString
			status, region, city, address sql.NullString
		)
		if err := rows.Scan(&c.NationalID, &c.FirstName, &c.FatherName, &c.GrandfatherName, &c.LastName,
			&gender, &birth, &c.IsDeceased, &death, &status, &region, &city, &address); err != nil {
			return nil, fmt.Errorf("failed to scan citizen: %w", err)
		}
		c.Gender = models.Gender(gender.String)
		c.DateOfBirth = birth.String
		c.DeathDate = death.String
		c.SocialStatus = status.String
		c.Region = region.String
		c.City = city.String
		c.Address = address.String
		citizens = append(citizens, c)
	}
	return citizens, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
