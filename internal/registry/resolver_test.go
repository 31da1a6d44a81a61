package registry

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/resilience"
	"github.com/HansenHomeAI/RegridParcelBoundaries/pkg/regrid"
)

// call records one Source invocation.
type call struct {
	kind  string
	key   string
	scope regrid.Scope
}

// recordingSource wraps a Source and records every call.
type recordingSource struct {
	inner Source
	mu    sync.Mutex
	calls []call
}

func (s *recordingSource) record(kind, key string, scope regrid.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{kind: kind, key: key, scope: scope})
}

func (s *recordingSource) ByNumber(ctx context.Context, number string, scope regrid.Scope) ([]byte, error) {
	s.record("number", number, scope)
	return s.inner.ByNumber(ctx, number, scope)
}

func (s *recordingSource) ByAddress(ctx context.Context, address string, scope regrid.Scope) ([]byte, error) {
	s.record("address", address, scope)
	return s.inner.ByAddress(ctx, address, scope)
}

func (s *recordingSource) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.kind
	}
	return out
}

// stubSource returns canned payloads per lookup kind.
type stubSource struct {
	number, address       []byte
	numberErr, addressErr error
}

func (s stubSource) ByNumber(context.Context, string, regrid.Scope) ([]byte, error) {
	return s.number, s.numberErr
}

func (s stubSource) ByAddress(context.Context, string, regrid.Scope) ([]byte, error) {
	return s.address, s.addressErr
}

func fixtureResolver(t *testing.T) (*SearchResolver, *recordingSource) {
	t.Helper()
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	src := &recordingSource{inner: NewFixtureSource(cat)}
	return NewSearchResolver(src), src
}

func TestResolve_AddressMatch(t *testing.T) {
	r, src := fixtureResolver(t)

	b, err := r.Resolve(context.Background(), model.IdentifierRecord{Address: "324 Dolan Rd"})
	require.NoError(t, err)
	require.NotNil(t, b)
	require.True(t, b.HasGeometry())

	g, err := geojson.Encode(b.Geometry)
	require.NoError(t, err)
	assert.Equal(t, "Polygon", g.Type)
	assert.Equal(t, model.Vertex{Lat: 46.1, Lon: -122.8}, b.Vertices[0])
	assert.Equal(t, "324_DOLAN_RD", b.CanonicalID)
	assert.Equal(t, []string{"address"}, src.kinds(), "only the address path runs")
}

func TestResolve_NumberMatch(t *testing.T) {
	r, _ := fixtureResolver(t)

	b, err := r.Resolve(context.Background(), model.IdentifierRecord{AssessorNumber: "2006161255"})
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "SKAMANIA_2006161255", b.CanonicalID)
	assert.Equal(t, "Skamania", b.County)
}

func TestResolve_NoSearchKey(t *testing.T) {
	r, src := fixtureResolver(t)

	b, err := r.Resolve(context.Background(), model.IdentifierRecord{County: "Skamania", State: "WA", RawText: "x"})
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.Empty(t, src.kinds())
}

func TestResolve_NumberShortCircuitsAddress(t *testing.T) {
	r, src := fixtureResolver(t)

	b, err := r.Resolve(context.Background(), model.IdentifierRecord{
		AssessorNumber: "050400150400",
		Address:        "324 Dolan Rd",
	})
	require.NoError(t, err)
	assert.Equal(t, "SKAMANIA_050400150400", b.CanonicalID)
	assert.Equal(t, []string{"number"}, src.kinds())
}

func TestResolve_FallsBackToAddress(t *testing.T) {
	r, src := fixtureResolver(t)

	b, err := r.Resolve(context.Background(), model.IdentifierRecord{
		AssessorNumber: "999999",
		Address:        "1501 Canyon Creek Rd",
	})
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "SKAMANIA_050400150400", b.CanonicalID)
	assert.Equal(t, []string{"number", "address"}, src.kinds())
}

func TestResolve_NothingFound(t *testing.T) {
	r, src := fixtureResolver(t)

	b, err := r.Resolve(context.Background(), model.IdentifierRecord{AssessorNumber: "000", Address: "77 Nowhere Lane"})
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.Equal(t, []string{"number", "address"}, src.kinds())
}

func TestResolve_ScopeNormalized(t *testing.T) {
	r, src := fixtureResolver(t)

	_, err := r.Resolve(context.Background(), model.IdentifierRecord{
		AssessorNumber: "2006161255",
		County:         "Skamania County",
		State:          " WA",
	})
	require.NoError(t, err)
	require.Len(t, src.calls, 1)
	assert.Equal(t, regrid.Scope{County: "Skamania", State: "WA"}, src.calls[0].scope)
}

func TestResolve_Idempotent(t *testing.T) {
	r, _ := fixtureResolver(t)
	id := model.IdentifierRecord{AssessorNumber: "2006161255"}

	first, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve_SourceErrorStopsFallback(t *testing.T) {
	upstream := resilience.NewStatusError("regrid", http.StatusUnauthorized, []byte("bad token"))
	src := &recordingSource{inner: stubSource{numberErr: upstream}}
	r := NewSearchResolver(src)

	b, err := r.Resolve(context.Background(), model.IdentifierRecord{AssessorNumber: "1", Address: "2 Oak St"})
	require.Error(t, err)
	assert.Nil(t, b)
	assert.Equal(t, http.StatusUnauthorized, resilience.StatusCode(err))
	assert.Equal(t, []string{"number"}, src.kinds())
}

func TestResolve_NotFoundThenAddressError(t *testing.T) {
	src := stubSource{addressErr: errors.New("connection reset")}
	r := NewSearchResolver(src)

	_, err := r.Resolve(context.Background(), model.IdentifierRecord{AssessorNumber: "1", Address: "2 Oak St"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address lookup")
}

func TestResolve_MalformedBodyIsError(t *testing.T) {
	r := NewSearchResolver(stubSource{number: []byte("<html>")})

	_, err := r.Resolve(context.Background(), model.IdentifierRecord{AssessorNumber: "1"})
	require.Error(t, err)
}

func TestResolve_CustomAliases(t *testing.T) {
	body := []byte(`{"parcels": {"type": "FeatureCollection", "features": [{"properties": {"pin": "PIN-7"}}]}}`)
	aliases := DefaultAliases
	aliases.CanonicalID = []string{"pin"}

	r := NewSearchResolver(stubSource{address: body}, WithAliases(aliases))
	b, err := r.Resolve(context.Background(), model.IdentifierRecord{Address: "x"})
	require.NoError(t, err)
	assert.Equal(t, "PIN-7", b.CanonicalID)
}

func TestLiveClientIsSource(t *testing.T) {
	var src Source = regrid.NewClient("token")
	assert.NotNil(t, src)
}
