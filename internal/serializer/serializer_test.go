package serializer

import (
	"errors"
	"reflect"
	"testing"
)

type report struct {
	Query   string   `json:"query" msgpack:"query"`
	Sources []string `json:"sources" msgpack:"sources"`
	Score   float64  `json:"score" msgpack:"score"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"msgpack", FormatMsgpack, false},
		{"binary", FormatMsgpack, false},
		{"yaml", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSerializer_RoundTrip(t *testing.T) {
	value := report{Query: "cache tiers", Sources: []string{"a", "b"}, Score: 0.75}

	tests := []struct {
		name        string
		format      Format
		compression string
		wantExt     string
	}{
		{"json", FormatJSON, "none", "json"},
		{"msgpack", FormatMsgpack, "none", "msgpack"},
		{"json+gzip", FormatJSON, "gzip", "json.gz"},
		{"msgpack+zstd", FormatMsgpack, "zstd", "msgpack.zst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compression(tt.compression)
			if err != nil {
				t.Fatalf("Compression() error = %v", err)
			}
			s, err := New[report](tt.format, c)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if s.Format() != tt.format {
				t.Errorf("Format() = %v, want %v", s.Format(), tt.format)
			}
			if got := s.Extension(); got != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", got, tt.wantExt)
			}

			data, err := s.Encode(value)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := s.Decode(data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !reflect.DeepEqual(got, value) {
				t.Errorf("Decode() = %+v, want %+v", got, value)
			}
		})
	}
}

func TestJSON_EncodeUnsupported(t *testing.T) {
	s := MustNew[any](FormatJSON, nil)
	_, err := s.Encode(make(chan int))
	if !errors.Is(err, ErrEncode) {
		t.Errorf("Encode(chan) error = %v, want ErrEncode", err)
	}
}

func TestDecode_AnyNumbers(t *testing.T) {
	tests := []struct {
		format Format
		want   any
	}{
		{FormatJSON, float64(3)},
		{FormatMsgpack, int8(3)},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			s := MustNew[any](tt.format, nil)
			data, err := s.Encode(3)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := s.Decode(data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %#v (%T), want %#v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestDecode_Corrupt(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatMsgpack} {
		t.Run(f.String(), func(t *testing.T) {
			s := MustNew[report](f, nil)
			_, err := s.Decode([]byte{0xc1, 0x00, '{'})
			if !errors.Is(err, ErrDecode) {
				t.Errorf("Decode() error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestCompression_Unknown(t *testing.T) {
	_, err := Compression("lz4")
	if !errors.Is(err, ErrUnknownCompression) {
		t.Errorf("Compression(lz4) error = %v, want ErrUnknownCompression", err)
	}
}
