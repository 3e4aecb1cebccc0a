package serialization

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshot mirrors the shape of a superstep checkpoint.
type snapshot struct {
	Program   string                    `json:"program" msgpack:"program"`
	Superstep int                       `json:"superstep" msgpack:"superstep"`
	Globals   map[string]bool           `json:"globals" msgpack:"globals"`
	Compute   map[string]map[string]int `json:"compute" msgpack:"compute"`
}

func sample() snapshot {
	return snapshot{
		Program:   "traversal",
		Superstep: 3,
		Globals:   map[string]bool{"voteToHalt": true},
		Compute: map[string]map[string]int{
			"marko": {"count": 1},
			"josh":  {"count": 2},
		},
	}
}

func TestCodecs(t *testing.T) {
	for _, name := range []string{"json", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			codec, err := CodecByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, codec.Name())

			encoded, err := codec.Encode(sample())
			require.NoError(t, err)
			var decoded snapshot
			require.NoError(t, codec.Decode(encoded, &decoded))
			assert.Equal(t, sample(), decoded)
		})
	}

	_, err := CodecByName("xml")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestMsgPackCodec_Deterministic(t *testing.T) {
	codec := NewMsgPackCodec()
	a, err := codec.Encode(sample())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b, err := codec.Encode(sample())
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestMsgPackCodec_LooseIntegers(t *testing.T) {
	codec := NewMsgPackCodec()
	encoded, err := codec.Encode(map[string]any{"small": 1, "big": int64(1) << 40, "rank": 0.25})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, codec.Decode(encoded, &decoded))
	assert.Equal(t, int64(1), decoded["small"])
	assert.Equal(t, int64(1)<<40, decoded["big"])
	assert.Equal(t, 0.25, decoded["rank"])
}

func TestSerializer_Pipelines(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"json plain", Config{Codec: NewJSONCodec(), Compression: CompressionNone}, "json"},
		{"msgpack gzip", Config{Codec: NewMsgPackCodec(), Compression: CompressionGzip}, "msgpack+gzip"},
		{"msgpack zstd", Config{Codec: NewMsgPackCodec(), Compression: CompressionZstd}, "msgpack+zstd"},
		{"msgpack zstd aes", Config{Codec: NewMsgPackCodec(), Compression: CompressionZstd, EncryptKey: key}, "msgpack+zstd+aes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())

			data, err := s.Serialize(sample())
			require.NoError(t, err)
			var decoded snapshot
			require.NoError(t, s.Deserialize(data, &decoded))
			assert.Equal(t, sample(), decoded)
		})
	}
}

func TestSerializer_Compresses(t *testing.T) {
	large := snapshot{Compute: map[string]map[string]int{}}
	for i := 0; i < 500; i++ {
		large.Compute[fmt.Sprintf("vertex-%d", i)] = map[string]int{"count": 1}
	}
	plain, err := New(Config{Codec: NewMsgPackCodec()})
	require.NoError(t, err)
	raw, err := plain.Serialize(large)
	require.NoError(t, err)

	packed, err := Default().Serialize(large)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(raw))
}

func TestConfig_Validate(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoCodec)

	_, err = New(Config{Codec: NewJSONCodec(), Compression: "lz4"})
	assert.ErrorIs(t, err, ErrUnknownCompression)

	_, err = New(Config{Codec: NewJSONCodec(), EncryptKey: []byte("short")})
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestSerializer_CorruptedData(t *testing.T) {
	key := make([]byte, 16)
	_, err := rand.Read(key)
	require.NoError(t, err)

	s, err := New(Config{Codec: NewJSONCodec(), EncryptKey: key})
	require.NoError(t, err)

	var out any
	err = s.Deserialize([]byte("corrupted encrypted data"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")

	err = Default().Deserialize([]byte("not zstd"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decompression failed")
}

func BenchmarkSerializer_Default(b *testing.B) {
	s := Default()
	data := sample()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := s.Serialize(data)
		if err != nil {
			b.Fatal(err)
		}
		var decoded snapshot
		if err := s.Deserialize(out, &decoded); err != nil {
			b.Fatal(err)
		}
	}
}
