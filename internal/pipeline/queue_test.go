package pipeline

import "testing"

func TestOrderQueue(t *testing.T) {
	tests := []struct {
		name string
		in   []QueuedMessage
		want []string // expected text order
	}{
		{
			name: "priority descending",
			in: []QueuedMessage{
				{Text: "low", Priority: 3, seq: 1},
				{Text: "high", Priority: 7, seq: 2},
				{Text: "mid", Priority: 5, seq: 3},
			},
			want: []string{"high", "mid", "low"},
		},
		{
			name: "fifo within a priority band",
			in: []QueuedMessage{
				{Text: "first", Priority: 50, seq: 1},
				{Text: "second", Priority: 50, seq: 2},
				{Text: "third", Priority: 50, seq: 3},
			},
			want: []string{"first", "second", "third"},
		},
		{
			name: "mixed bands keep enqueue order inside each",
			in: []QueuedMessage{
				{Text: "a-low", Priority: 10, seq: 1},
				{Text: "a-high", Priority: 90, seq: 2},
				{Text: "b-low", Priority: 10, seq: 3},
				{Text: "b-high", Priority: 90, seq: 4},
			},
			want: []string{"a-high", "b-high", "a-low", "b-low"},
		},
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orderQueue(tt.in)
			if len(tt.in) != len(tt.want) {
				t.Fatalf("length mismatch: %d vs %d", len(tt.in), len(tt.want))
			}
			for i, msg := range tt.in {
				if msg.Text != tt.want[i] {
					t.Errorf("position %d = %q, want %q", i, msg.Text, tt.want[i])
				}
			}
		})
	}
}
