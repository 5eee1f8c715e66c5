package queue_test

import (
	"testing"
	"time"

	"github.com/xraph/docsync/queue"
)

func TestCodecs(t *testing.T) {
	msg := queue.NewMessage("long", "sjob_01h2xcejqtf2nbrexx3vqjhp41", 5*time.Second)

	for _, name := range []string{"json", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			c, err := queue.CodecByName(name)
			if err != nil {
				t.Fatal(err)
			}
			data, err := c.Encode(msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := c.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.JobID != msg.JobID || got.Queue != msg.Queue {
				t.Errorf("got %+v, want %+v", got, msg)
			}
			if !got.VisibleAt.Equal(msg.VisibleAt) {
				t.Errorf("VisibleAt = %v, want %v", got.VisibleAt, msg.VisibleAt)
			}
		})
	}
}

func TestCodecByNameUnknown(t *testing.T) {
	if _, err := queue.CodecByName("xml"); err == nil {
		t.Error("expected error for unknown codec")
	}
}
