package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civilregistry/internal/models"
	"civilregistry/internal/storage"
)

func seedCitizens(t *testing.T, s *Store) {
	t.Helper()
	for _, c := range []models.Citizen{
		{NationalID: "400000001", FirstName: "محمد", FatherName: "أحمد", GrandfatherName: "علي", LastName: "حداد", Gender: models.GenderMale, DateOfBirth: "1990-01-01"},
		{NationalID: "400000002", FirstName: "محمود", FatherName: "سالم", GrandfatherName: "علي", LastName: "حداد"},
		{NationalID: "400000003", FirstName: "Sara", FatherName: "Omar", GrandfatherName: "Ali", LastName: "50%_off", IsDeceased: true, DeathDate: "2020-02-02"},
	} {
		require.NoError(t, s.InsertCitizen(context.Background(), c))
	}
}

func TestInsertCitizenRejectsDuplicateNationalID(t *testing.T) {
	s := newTestStore(t)
	seedCitizens(t, s)

	err := s.InsertCitizen(context.Background(), models.Citizen{NationalID: "400000001", FirstName: "a", FatherName: "b", GrandfatherName: "c", LastName: "d"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestSearchCitizens(t *testing.T) {
	s := newTestStore(t)
	seedCitizens(t, s)
	ctx := context.Background()

	tests := []struct {
		name  string
		query models.CitizenQuery
		want  []string
	}{
		{"exact national id", models.CitizenQuery{NationalID: "400000001"}, []string{"400000001"}},
		{"national id is not a substring match", models.CitizenQuery{NationalID: "40000000"}, nil},
		{"name substring", models.CitizenQuery{FirstName: "مح", LastName: "حداد"}, []string{"400000001", "400000002"}},
		{"every name must match", models.CitizenQuery{FirstName: "مح", FatherName: "سالم"}, []string{"400000002"}},
		{"case insensitive", models.CitizenQuery{FirstName: "sara"}, []string{"400000003"}},
		{"wildcards are literal", models.CitizenQuery{LastName: "%_"}, []string{"400000003"}},
		{"underscore does not match any char", models.CitizenQuery{LastName: "ح_اد"}, nil},
		{"limit", models.CitizenQuery{GrandfatherName: "علي", Limit: 1}, []string{"400000001"}},
		{"empty query", models.CitizenQuery{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SearchCitizens(ctx, tt.query)
			require.NoError(t, err)
			require.NotNil(t, got)
			ids := []string{}
			for _, c := range got {
				ids = append(ids, c.NationalID)
			}
			if tt.want == nil {
				assert.Empty(t, ids)
				return
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	got, err := s.SearchCitizens(ctx, models.CitizenQuery{NationalID: "400000003"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsDeceased)
	assert.Equal(t, "2020-02-02", got[0].DeathDate)
	assert.Empty(t, got[0].Gender)
	assert.Empty(t, got[0].Address)
}
