package model

import "testing"

func TestResolveIdentity(t *testing.T) {
	realUser := &User{ID: "u1", Name: "The Octocat", Handle: "octocat", Image: "https://avatars.example/octocat"}

	tests := []struct {
		name          string
		card          *Card
		wantAnonymous bool
		wantHandle    string
	}{
		{
			name:          "real user, not anonymous",
			card:          &Card{User: realUser},
			wantAnonymous: false,
			wantHandle:    "octocat",
		},
		{
			name:          "anonymous flag hides attached user",
			card:          &Card{User: realUser, Anonymous: true},
			wantAnonymous: true,
			wantHandle:    AnonymousHandle,
		},
		{
			name:          "no user reference",
			card:          &Card{},
			wantAnonymous: true,
			wantHandle:    AnonymousHandle,
		},
		{
			name:          "handle equals anonymous in another case",
			card:          &Card{User: &User{Name: "Someone", Handle: "AnOnYmOuS"}},
			wantAnonymous: true,
			wantHandle:    AnonymousHandle,
		},
		{
			name:          "name equals anonymous",
			card:          &Card{User: &User{Name: "ANONYMOUS", Handle: "someone"}},
			wantAnonymous: true,
			wantHandle:    AnonymousHandle,
		},
		{
			name:          "name merely contains anonymous",
			card:          &Card{User: &User{Name: "anonymous coward", Handle: "coward"}},
			wantAnonymous: false,
			wantHandle:    "coward",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveIdentity(tt.card)
			if got.Anonymous != tt.wantAnonymous {
				t.Errorf("Anonymous = %v, want %v", got.Anonymous, tt.wantAnonymous)
			}
			if got.Handle != tt.wantHandle {
				t.Errorf("Handle = %q, want %q", got.Handle, tt.wantHandle)
			}
		})
	}
}

func TestResolveIdentity_SentinelFields(t *testing.T) {
	got := ResolveIdentity(&Card{Anonymous: true, User: &User{Name: "Real", Image: "real.png"}})

	if got != AnonymousIdentity() {
		t.Errorf("ResolveIdentity() = %+v, want sentinel %+v", got, AnonymousIdentity())
	}
	if got.Image != AnonymousImage {
		t.Errorf("Image = %q, want placeholder %q", got.Image, AnonymousImage)
	}
}
