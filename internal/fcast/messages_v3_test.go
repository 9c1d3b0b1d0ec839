package fcast

import (
	"encoding/json"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestMetadataObjectMarshal(t *testing.T) {
	cases := []struct {
		name string
		m    MetadataObject
		want string
	}{
		{
			name: "title+thumb+custom null",
			m: func() MetadataObject {
				m := MetadataObject{Title: strPtr("abc"), ThumbnailURL: strPtr("def")}
				m.SetCustom(json.RawMessage("null"))
				return m
			}(),
			want: `{"custom":null,"thumbnailUrl":"def","title":"abc","type":0}`,
		},
		{
			name: "all none but custom null",
			m: func() MetadataObject {
				var m MetadataObject
				m.SetCustom(json.RawMessage("null"))
				return m
			}(),
			want: `{"custom":null,"thumbnailUrl":null,"title":null,"type":0}`,
		},
		{
			name: "title+thumb, no custom field",
			m:    MetadataObject{Title: strPtr("abc"), ThumbnailURL: strPtr("def")},
			want: `{"thumbnailUrl":"def","title":"abc","type":0}`,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := json.Marshal(c.m)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(got) != c.want {
				t.Fatalf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestMetadataObjectUnmarshalUnknownType(t *testing.T) {
	var m MetadataObject
	if err := json.Unmarshal([]byte(`{"type":1}`), &m); err == nil {
		t.Fatal("expected error for unknown metadata type")
	}
}

func TestEventSubscribeObjectMarshal(t *testing.T) {
	cases := []struct {
		name string
		e    EventSubscribeObject
		want string
	}{
		{"start", EventSubscribeMediaItemStart(), `{"type":0}`},
		{"end", EventSubscribeMediaItemEnd(), `{"type":1}`},
		{"changed", EventSubscribeMediaItemChanged(), `{"type":2}`},
		{"keydown empty", EventSubscribeKeyDown([]string{}), `{"keys":[],"type":3}`},
		{"keyup two", EventSubscribeKeyUp([]string{"abc", "def"}), `{"keys":["abc","def"],"type":4}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := json.Marshal(c.e)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(got) != c.want {
				t.Fatalf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestEventSubscribeObjectUnmarshalUnknownType(t *testing.T) {
	var e EventSubscribeObject
	if err := json.Unmarshal([]byte(`{"type":5}`), &e); err == nil {
		t.Fatal("expected error for unknown event subscribe type")
	}
}

func TestEventObjectMarshal(t *testing.T) {
	empty := MediaItem{Container: ""}

	cases := []struct {
		name string
		e    EventObject
		want string
	}{
		{"media start", EventObject{Type: EventTypeMediaItemStart, MediaItem: &empty}, `{"item":{"container":""},"type":0}`},
		{"media end", EventObject{Type: EventTypeMediaItemEnd, MediaItem: &empty}, `{"item":{"container":""},"type":1}`},
		{"media change", EventObject{Type: EventTypeMediaItemChange, MediaItem: &empty}, `{"item":{"container":""},"type":2}`},
		{"key down", EventObject{Type: EventTypeKeyDown, Key: "", Repeat: false, Handled: false}, `{"handled":false,"key":"","repeat":false,"type":3}`},
		{"key up", EventObject{Type: EventTypeKeyUp, Key: "", Repeat: false, Handled: false}, `{"handled":false,"key":"","repeat":false,"type":4}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := json.Marshal(c.e)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(got) != c.want {
				t.Fatalf("got %s, want %s", got, c.want)
			}
		})
	}
}

func TestEventObjectUnmarshalUnknownType(t *testing.T) {
	var e EventObject
	if err := json.Unmarshal([]byte(`{"type":5}`), &e); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestPlaylistContentMarshal(t *testing.T) {
	one := float64(1.0)

	empty := PlaylistContent{ContentType: ContentTypePlaylist, Items: []MediaItem{}}
	got, err := json.Marshal(empty)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"contentType":0,"items":[]}`; string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}

	withVolSpeed := PlaylistContent{ContentType: ContentTypePlaylist, Items: []MediaItem{}, Volume: &one, Speed: &one}
	got, err = json.Marshal(withVolSpeed)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"contentType":0,"items":[],"volume":1,"speed":1}`; string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}

	url := "abc"
	withItem := PlaylistContent{ContentType: ContentTypePlaylist, Items: []MediaItem{{Container: "video/mp4", URL: &url}}}
	got, err = json.Marshal(withItem)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"contentType":0,"items":[{"container":"video/mp4","url":"abc"}]}`; string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}

	var meta MetadataObject
	withMeta := PlaylistContent{
		ContentType: ContentTypePlaylist,
		Items:       []MediaItem{{Container: "video/mp4", URL: &url}},
		Volume:      &one,
		Speed:       &one,
		Metadata:    &meta,
	}
	got, err = json.Marshal(withMeta)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"contentType":0,"items":[{"container":"video/mp4","url":"abc"}],"volume":1,"speed":1,"metadata":{"thumbnailUrl":null,"title":null,"type":0}}`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
