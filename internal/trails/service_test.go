package trails

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func trailsJSON(n int) string {
	var body struct {
		Trails []Trail `json:"trails"`
	}
	for i := 0; i < n; i++ {
		body.Trails = append(body.Trails, Trail{
			Name:       "Trail " + string(rune('A'+i)),
			Difficulty: "Easy",
			Length:     "5 km",
		})
	}
	b, _ := json.Marshal(body)
	return string(b)
}

func TestParseTrailsStripsFences(t *testing.T) {
	found, err := parseTrails("```json\n" + trailsJSON(2) + "\n```")
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "Trail A", found[0].Name)
}

func TestParseTrailsLimitsAndErrors(t *testing.T) {
	found, err := parseTrails(trailsJSON(9))
	require.NoError(t, err)
	assert.Len(t, found, MaxResults)

	_, err = parseTrails("  ")
	assert.ErrorIs(t, err, ErrNoTrails)

	_, err = parseTrails(`{"trails": []}`)
	assert.ErrorIs(t, err, ErrNoTrails)

	_, err = parseTrails(`{"trails": [{"description": "no name"}]}`)
	assert.ErrorIs(t, err, ErrNoTrails)

	_, err = parseTrails("Sorry, I cannot help")
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestSearchValidation(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)
	_, err := svc.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Search(context.Background(), "Vilnius")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewGeminiGenerator(context.Background(), "", "gemini-2.5-flash")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSearchPromptAndGeneratorError(t *testing.T) {
	gen := &fakeGenerator{text: trailsJSON(3)}
	svc := NewService(gen, nil, nil, nil)

	found, err := svc.Search(context.Background(), " Trakai ")
	require.NoError(t, err)
	assert.Len(t, found, 3)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "6 popular and scenic hiking trails in or near Trakai.")

	_, err = svc.SearchNear(context.Background(), 54.6872, 25.2797)
	require.NoError(t, err)
	assert.Contains(t, gen.prompts[1], "latitude 54.68720, longitude 25.27970")

	gen.err = errors.New("quota exceeded")
	_, err = svc.Search(context.Background(), "Kaunas")
	assert.Error(t, err)
}

func TestSearchUsesCache(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	gen := &fakeGenerator{text: trailsJSON(2)}
	svc := NewService(gen, nil, rdb, nil)

	first, err := svc.Search(context.Background(), "Trakai")
	require.NoError(t, err)
	second, err := svc.Search(context.Background(), "trakai")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, gen.prompts, 1)
	assert.True(t, s.Exists(cachePrefix+"trakai"))
	assert.Equal(t, cacheTTL, s.TTL(cachePrefix+"trakai"))
}

func TestSearchSurvivesRedisDown(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	defer rdb.Close()
	s.Close()

	gen := &fakeGenerator{text: trailsJSON(1)}
	found, err := NewService(gen, nil, rdb, nil).Search(context.Background(), "Trakai")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestToggleFavorite(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	trail := Trail{Name: "Ridge Loop", Difficulty: "Hard", Length: "12 km"}
	svc := NewService(nil, mock, nil, nil)

	mock.ExpectExec(`DELETE FROM trail_favorites`).WithArgs("device-1", "Ridge Loop").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO trail_favorites`).WithArgs("device-1", "Ridge Loop", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	added, err := svc.ToggleFavorite(context.Background(), "device-1", trail)
	require.NoError(t, err)
	assert.True(t, added)

	mock.ExpectExec(`DELETE FROM trail_favorites`).WithArgs("device-1", "Ridge Loop").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	added, err = svc.ToggleFavorite(context.Background(), "device-1", trail)
	require.NoError(t, err)
	assert.False(t, added)

	raw, _ := json.Marshal(trail)
	mock.ExpectQuery(`SELECT trail FROM trail_favorites`).WithArgs("device-1").
		WillReturnRows(pgxmock.NewRows([]string{"trail"}).AddRow(raw).AddRow([]byte("not json")))
	favs, err := svc.Favorites(context.Background(), "device-1")
	require.NoError(t, err)
	assert.Equal(t, []Trail{trail}, favs)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("Curonian Spit")
	assert.True(t, strings.HasPrefix(p, "Find 6 popular"))
	assert.Contains(t, p, "Easy/Moderate/Hard")
}
