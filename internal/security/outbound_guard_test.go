package security

import (
	"testing"
	"time"
)

func TestOutboundGuard_ValidateURL(t *testing.T) {
	g := NewOutboundGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "httpsの公開URLは許可", url: "https://api.airtable.com/v0/app1/Videos", wantErr: false},
		{name: "httpの公開URLは許可", url: "http://example.com/feed.xml", wantErr: false},
		{name: "空URLは拒否", url: "", wantErr: true},
		{name: "ftpスキームは拒否", url: "ftp://example.com/x", wantErr: true},
		{name: "fileスキームは拒否", url: "file:///etc/passwd", wantErr: true},
		{name: "localhostは拒否", url: "http://localhost:8080/", wantErr: true},
		{name: "ループバックIPは拒否", url: "http://127.0.0.1/", wantErr: true},
		{name: "プライベートIPは拒否", url: "http://10.0.0.5/", wantErr: true},
		{name: "192.168系は拒否", url: "http://192.168.1.1/admin", wantErr: true},
		{name: "メタデータIPは拒否", url: "http://169.254.169.254/latest/meta-data/", wantErr: true},
		{name: "IPv6ループバックは拒否", url: "http://[::1]/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr = %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestOutboundGuard_NewSafeClient(t *testing.T) {
	g := NewOutboundGuard()

	client := g.NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient が nil を返した")
	}
}
