package vectorstore

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "knowledge", false},
		{"valid with underscores", "eu_springfield_high_biology", false},
		{"valid with digits", "cluster2_school9_notes", false},
		{"empty", "", true},
		{"uppercase", "Springfield", true},
		{"spaces", "biology notes", true},
		{"path separator", "a/b", true},
		{"hyphen", "biology-notes", true},
		{"too long", string(make([]byte, 129)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, uint64(512), cfg.VectorSize)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.NotZero(t, cfg.DialTimeout)
	assert.NotZero(t, cfg.RequestTimeout)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())

	bad := Config{Host: "localhost", Port: 70000, VectorSize: 512}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = Config{Port: 6334, VectorSize: 512}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestFilterSerialization(t *testing.T) {
	f := NewFilter(
		MatchKeyword("school_id", "springfield_high"),
		MatchText("text", "photosynthesis"),
	)

	qf := f.toQdrant()
	require.NotNil(t, qf)
	require.Len(t, qf.Must, 2)

	kw := qf.Must[0].GetField()
	require.NotNil(t, kw)
	assert.Equal(t, "school_id", kw.Key)
	assert.Equal(t, "springfield_high", kw.Match.GetKeyword())

	txt := qf.Must[1].GetField()
	require.NotNil(t, txt)
	assert.Equal(t, "text", txt.Key)
	assert.Equal(t, "photosynthesis", txt.Match.GetText())
}

func TestFilterSerializationEmpty(t *testing.T) {
	assert.Nil(t, NewFilter())
	assert.Nil(t, (*Filter)(nil).toQdrant())
	assert.Nil(t, (&Filter{}).toQdrant())
	assert.Nil(t, (&Filter{Must: []Condition{{}}}).toQdrant())
}

func TestPointConversionRoundTrip(t *testing.T) {
	p := &Point{
		ID:     "3f2a9c1e-5b7d-4e8f-9a1b-2c3d4e5f6a7b",
		Vector: []float32{0.1, 0.2, 0.3},
		Payload: map[string]any{
			"text":        "mitochondria are the powerhouse of the cell",
			"chunk_index": 2,
			"score_bias":  0.5,
			"archived":    false,
		},
	}

	qp := toQdrantPoint(p)
	assert.Equal(t, p.ID, qp.Id.GetUuid())
	assert.Len(t, qp.Vectors.GetVector().Data, 3)

	back := fromQdrantRetrievedPoint(&qdrant.RetrievedPoint{
		Id:      qp.Id,
		Payload: qp.Payload,
	})
	assert.Equal(t, p.ID, back.ID)
	assert.Equal(t, "mitochondria are the powerhouse of the cell", back.Payload["text"])
	assert.Equal(t, int64(2), back.Payload["chunk_index"])
	assert.Equal(t, 0.5, back.Payload["score_bias"])
	assert.Equal(t, false, back.Payload["archived"])
}

func TestScoredPointConversion(t *testing.T) {
	sp := fromQdrantScoredPoint(&qdrant.ScoredPoint{
		Id:    qdrant.NewIDUUID("3f2a9c1e-5b7d-4e8f-9a1b-2c3d4e5f6a7b"),
		Score: 0.87,
		Payload: map[string]*qdrant.Value{
			"file_name": {Kind: &qdrant.Value_StringValue{StringValue: "syllabus.pdf"}},
		},
	})

	assert.Equal(t, "3f2a9c1e-5b7d-4e8f-9a1b-2c3d4e5f6a7b", sp.ID)
	assert.InDelta(t, 0.87, sp.Score, 1e-6)
	assert.Equal(t, "syllabus.pdf", sp.Payload["file_name"])
}

func TestExtractPointID(t *testing.T) {
	assert.Equal(t, "", extractPointID(nil))
	assert.Equal(t, "abc-123", extractPointID(qdrant.NewIDUUID("abc-123")))
	assert.Equal(t, "42", extractPointID(qdrant.NewIDNum(42)))
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, isTransientError(nil))
	assert.False(t, isTransientError(assert.AnError))
}
