package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"UPLOADED", "FINISHED", "ABORTED"} {
		st, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, st.String())
	}

	_, err := ParseStatus("PROCESSING")
	assert.Error(t, err)
	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusUploaded.Terminal())
	assert.True(t, StatusFinished.Terminal())
	assert.True(t, StatusAborted.Terminal())
}

func TestAttributeValue_KeepsStringAndBoolApart(t *testing.T) {
	var attrs []Attribute
	raw := `[{"code":"a","value":"true"},{"code":"b","value":true},{"code":"c","value":"red"}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &attrs))
	require.Len(t, attrs, 3)

	assert.False(t, attrs[0].Value.IsBool())
	assert.Equal(t, "true", attrs[0].Value.String())
	b, ok := attrs[1].Value.Bool()
	assert.True(t, ok)
	assert.True(t, b)
	assert.NotEqual(t, attrs[0].Value, attrs[1].Value)

	out, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestAttributeValue_RejectsOtherTypes(t *testing.T) {
	var v AttributeValue
	assert.Error(t, json.Unmarshal([]byte(`42`), &v))
	assert.Error(t, json.Unmarshal([]byte(`null`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &v))
}

func TestProductCloneIsIndependent(t *testing.T) {
	p := Product{
		SKU:        "sku-1",
		Title:      "Kettle",
		Category:   "kitchen",
		Attributes: []Attribute{{Code: "color", Value: StringValue("white")}},
		Images:     []Image{{URL: "https://img.example.com/1.jpg"}},
	}
	c := p.Clone()
	require.True(t, p.Equal(c))

	c.Attributes[0].Value = StringValue("black")
	c.Images[0].URL = "https://img.example.com/2.jpg"
	assert.Equal(t, "white", p.Attributes[0].Value.String())
	assert.Equal(t, "https://img.example.com/1.jpg", p.Images[0].URL)
	assert.False(t, p.Equal(c))
}

func TestUploadResultClone(t *testing.T) {
	r := UploadResult{Total: 1, Result: []string{"ok"}}
	c := r.Clone()
	c.Result[0] = "changed"
	assert.Equal(t, "ok", r.Result[0])
	assert.False(t, r.Equal(c))
}
