package vision

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error

	gotPath string
	gotBody []byte
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.gotPath = req.URL.Path
	if req.Body != nil {
		m.gotBody, _ = io.ReadAll(req.Body)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

// "Ym94ZWQ=" is base64 for "boxed"; "YQ==" and "Yg==" are "a" and "b".

func TestDetect(t *testing.T) {
	tr := &mockTransport{body: `{"image":"Ym94ZWQ=","boxes":2}`, statusCode: 200}
	c := New(tr, "http://cv.local/", time.Second)

	got, err := c.Detect(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "boxed" {
		t.Errorf("Detect() = %q, want boxed", got)
	}
	if tr.gotPath != "/detect" || string(tr.gotBody) != "jpeg" {
		t.Errorf("request = %s %q", tr.gotPath, tr.gotBody)
	}
}

func TestCrop(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{name: "two cats", body: `{"crops":["YQ==","Yg=="]}`, want: []string{"a", "b"}},
		{name: "no cats", body: `{"crops":[]}`, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&mockTransport{body: tt.body, statusCode: 200}, "http://cv.local", time.Second)
			crops, err := c.Crop(context.Background(), []byte("jpeg"))
			if err != nil {
				t.Fatal(err)
			}
			got := make([]string, len(crops))
			for i, b := range crops {
				got[i] = string(b)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Crop() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIdentify(t *testing.T) {
	body := `{"image":"Ym94ZWQ=","results":[{"index":1,"name":"Microwave","conf":0.913,"box":[1,2,3,4]}]}`
	c := New(&mockTransport{body: body, statusCode: 200}, "http://cv.local", time.Second)

	got, err := c.Identify(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatal(err)
	}
	want := &Identification{
		Image:   []byte("boxed"),
		Results: []Guess{{Index: 1, Name: "Microwave", Confidence: 0.913, Box: []int{1, 2, 3, 4}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Identify() mismatch (-want +got):\n%s", diff)
	}
}

func TestCallErrors(t *testing.T) {
	tests := []struct {
		name     string
		tr       *mockTransport
		endpoint string
		img      []byte
		wantErr  error
	}{
		{name: "no image", tr: &mockTransport{statusCode: 200}, endpoint: "http://cv", wantErr: ErrNoImage},
		{name: "no endpoint", tr: &mockTransport{statusCode: 200}, img: []byte("x"), wantErr: ErrNotConfigured},
		{name: "too large", tr: &mockTransport{statusCode: 413}, endpoint: "http://cv", img: []byte("x"), wantErr: ErrImageTooLarge},
		{name: "network", tr: &mockTransport{err: context.DeadlineExceeded}, endpoint: "http://cv", img: []byte("x"), wantErr: context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.tr, tt.endpoint, time.Second)
			if _, err := c.Detect(context.Background(), tt.img); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	c := New(&mockTransport{statusCode: 500, body: "boom"}, "http://cv", time.Second)
	if _, err := c.Identify(context.Background(), []byte("x")); err == nil {
		t.Error("expected error for status 500")
	}
	c = New(&mockTransport{statusCode: 200, body: "not json"}, "http://cv", time.Second)
	if _, err := c.Crop(context.Background(), []byte("x")); err == nil {
		t.Error("expected decode error")
	}
}
