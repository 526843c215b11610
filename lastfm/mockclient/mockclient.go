package mockclient

import (
	"context"
	"crypto/tls"
	_ "embed"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func New(t testing.TB, handler http.HandlerFunc) *http.Client {
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return net.Dial(network, server.Listener.Addr().String())
			},
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, //nolint:gosec
			},
		},
	}
}

//go:embed album_get_info_response.xml
var AlbumGetInfoResponse []byte

//go:embed album_get_info_no_images_response.xml
var AlbumGetInfoNoImagesResponse []byte

//go:embed album_get_info_error_response.xml
var AlbumGetInfoErrorResponse []byte
