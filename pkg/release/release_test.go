package release

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexhr/curator/pkg/applieswhen"
	"github.com/lexhr/curator/pkg/rules"
)

func sampleRule(id, slug string, value any, from string) *rules.RegulatoryRule {
	f, _ := time.Parse("2006-01-02", from)
	return &rules.RegulatoryRule{
		ID:            id,
		ConceptSlug:   slug,
		Authority:     rules.AuthorityLaw,
		Value:         value,
		ValueType:     "number",
		Status:        rules.StatusPublished,
		EffectiveFrom: f,
	}
}

func TestComputeReleaseHash_OrderIndependent(t *testing.T) {
	a := sampleRule("r1", "pdv-opca-stopa", 25, "2025-01-01")
	b := sampleRule("r2", "pdv-snizena-stopa", 13, "2025-01-01")
	c := sampleRule("r3", "fiskalizacija-obveza", true, "2025-07-01")

	h1, err := ComputeReleaseHash([]*rules.RegulatoryRule{a, b, c})
	require.NoError(t, err)
	h2, err := ComputeReleaseHash([]*rules.RegulatoryRule{c, a, b})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestComputeReleaseHash_SensitiveToContent(t *testing.T) {
	a := sampleRule("r1", "pdv-opca-stopa", 25, "2025-01-01")
	h1, err := ComputeReleaseHash([]*rules.RegulatoryRule{a})
	require.NoError(t, err)

	changed := sampleRule("r1", "pdv-opca-stopa", 23, "2025-01-01")
	h2, err := ComputeReleaseHash([]*rules.RegulatoryRule{changed})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestComputeReleaseHash_IgnoresVolatileFields(t *testing.T) {
	a := sampleRule("r1", "pdv-opca-stopa", 25, "2025-01-01")
	h1, err := ComputeReleaseHash([]*rules.RegulatoryRule{a})
	require.NoError(t, err)

	b := sampleRule("r1", "pdv-opca-stopa", 25, "2025-01-01")
	b.Confidence = 0.5
	b.UpdatedAt = time.Now()
	b.SourcePointerIDs = []string{"ptr-9"}
	h2, err := ComputeReleaseHash([]*rules.RegulatoryRule{b})
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "timestamps, confidence and pointers are not part of the release identity")
}

func TestComputeReleaseHash_EmptySetStable(t *testing.T) {
	h1, err := ComputeReleaseHash(nil)
	require.NoError(t, err)
	h2, err := ComputeReleaseHash([]*rules.RegulatoryRule{})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.NotEmpty(t, h1)
}

func TestComputeReleaseHash_AppliesWhenKeyOrderIrrelevant(t *testing.T) {
	w1, err := applieswhen.Parse([]byte(`{"op":"and","children":[{"op":"eq","field":"a","value":1},{"op":"eq","field":"b","value":2}]}`))
	require.NoError(t, err)
	w2, err := applieswhen.Parse([]byte(`{"op":"and","children":[{"op":"eq","field":"b","value":2},{"op":"eq","field":"a","value":1}]}`))
	require.NoError(t, err)

	a := sampleRule("r1", "pdv-opca-stopa", 25, "2025-01-01")
	a.AppliesWhen = w1
	b := sampleRule("r1", "pdv-opca-stopa", 25, "2025-01-01")
	b.AppliesWhen = w2

	h1, err := ComputeReleaseHash([]*rules.RegulatoryRule{a})
	require.NoError(t, err)
	h2, err := ComputeReleaseHash([]*rules.RegulatoryRule{b})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	rs := []*rules.RegulatoryRule{
		sampleRule("r1", "pdv-opca-stopa", 25, "2025-01-01"),
		sampleRule("r2", "pdv-snizena-stopa", 13, "2025-01-01"),
	}
	snap, err := NewSnapshot("v1.2.0", rs, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.RuleCount)

	data, err := snap.Marshal()
	require.NoError(t, err)

	parsed, err := ParseSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap.ReleaseHash, parsed.ReleaseHash)
}

func TestSnapshot_TamperDetected(t *testing.T) {
	snap, err := NewSnapshot("1.0.0", []*rules.RegulatoryRule{
		sampleRule("r1", "pdv-opca-stopa", 25, "2025-01-01"),
	}, time.Now())
	require.NoError(t, err)

	snap.Rules[0].Value = 23
	require.ErrorIs(t, snap.Verify(), ErrHashMismatch)
}

func TestNewSnapshot_RejectsBadVersion(t *testing.T) {
	for _, v := range []string{"", "1", "1.2", "release-1", "v1.2"} {
		_, err := NewSnapshot(v, nil, time.Now())
		require.Errorf(t, err, "version %q must be rejected", v)
	}
}

func TestFSExporter(t *testing.T) {
	dir := t.TempDir()
	snap, err := NewSnapshot("v1.0.0", nil, time.Now())
	require.NoError(t, err)

	path, err := (&FSExporter{Dir: dir}).Export(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rules-v1.0.0.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = ParseSnapshot(data)
	require.NoError(t, err)
}

type fakeS3 struct {
	bucket, key string
	body        int64
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = *params.Bucket
	f.key = *params.Key
	return &s3.PutObjectOutput{}, nil
}

func TestS3Exporter(t *testing.T) {
	snap, err := NewSnapshot("v2.0.0", nil, time.Now())
	require.NoError(t, err)

	fake := &fakeS3{}
	exp := &S3Exporter{Client: fake, Bucket: "lexhr-releases", Prefix: "prod"}
	loc, err := exp.Export(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "s3://lexhr-releases/prod/rules-v2.0.0.json", loc)
	assert.Equal(t, "prod/rules-v2.0.0.json", fake.key)
}
