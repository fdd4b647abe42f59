package service

import (
	"strings"
	"testing"
)

func TestParseSampleList(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		hasHeader bool
		want      []string
	}{
		{
			name:      "csv with header takes first column",
			input:     "sample_id,tissue\n889-6625,blood\n889-7000,saliva\n",
			hasHeader: true,
			want:      []string{"889-6625", "889-7000"},
		},
		{
			name:      "csv without header",
			input:     "889-6625,blood\n889-7000,saliva\n",
			hasHeader: false,
			want:      []string{"889-6625", "889-7000"},
		},
		{
			name:      "plain lines",
			input:     "889-6625\n889-7000\n",
			hasHeader: false,
			want:      []string{"889-6625", "889-7000"},
		},
		{
			name:      "plain lines with header",
			input:     "sample_id\n889-6625\n",
			hasHeader: true,
			want:      []string{"889-6625"},
		},
		{
			name:      "blank lines and whitespace skipped",
			input:     "889-6625\n\n  \n  889-7000  \n",
			hasHeader: false,
			want:      []string{"889-6625", "889-7000"},
		},
		{
			name:      "empty input",
			input:     "",
			hasHeader: true,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSampleList(strings.NewReader(tt.input), tt.hasHeader)
			if err != nil {
				t.Fatalf("ParseSampleList() failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSampleList() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseSampleList()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
