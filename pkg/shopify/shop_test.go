package shopify

import "testing"

func TestIsValidShopDomain(t *testing.T) {
	cases := []struct {
		domain string
		want   bool
	}{
		{"my-shop.myshopify.com", true},
		{"a.myshopify.com", true},
		{"Shop123.myshopify.com", true},
		{"my_shop.myshopify.com", false},
		{"-shop.myshopify.com", false},
		{"shop-.myshopify.com", false},
		{"myshopify.com", false},
		{".myshopify.com", false},
		{"my-shop.myshopify.com.evil.com", false},
		{"evil.com/my-shop.myshopify.com", false},
		{"my-shop.example.com", false},
		{"my-shop.myshopify.comx", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsValidShopDomain(c.domain); got != c.want {
			t.Errorf("IsValidShopDomain(%q) = %v, want %v", c.domain, got, c.want)
		}
	}
}

func TestNormalizeShopDomain(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"my-shop", "my-shop.myshopify.com"},
		{"My-Shop.myshopify.com", "my-shop.myshopify.com"},
		{"https://my-shop.myshopify.com", "my-shop.myshopify.com"},
		{"https://my-shop.myshopify.com/admin", "my-shop.myshopify.com"},
		{"  my-shop.myshopify.com  ", "my-shop.myshopify.com"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeShopDomain(c.in); got != c.want {
			t.Errorf("NormalizeShopDomain(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
