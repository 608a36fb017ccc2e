package cuenta_test

import (
	"context"
	"fmt"
	"net/http/httptest"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/gestionlocal/cuenta"
	"github.com/gestionlocal/cuenta/internal/fakebackend"
)

// ExampleNew builds a client whose session lives in Redis.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := cuenta.DefaultConfig()
	cfg.API.BaseURL = "https://cuenta.example.org/api"

	client, err := cuenta.New().
		WithConfig(cfg).
		WithRedis(rdb).
		Build()
	if err != nil {
		return
	}
	defer client.Close()
}

// ExampleClient_Login logs in against the development backend.
func ExampleClient_Login() {
	backend, _ := fakebackend.New(fakebackend.Options{}, fakebackend.DefaultSeed())
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	mr, _ := miniredis.Run()
	defer mr.Close()

	cfg := cuenta.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	client, err := cuenta.New().
		WithConfig(cfg).
		WithRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})).
		Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Close()

	u, err := client.Login(context.Background(), "luis.perez", "clave-inicial-42")
	if err != nil {
		fmt.Println(cuenta.UserMessage(err))
		return
	}
	fmt.Println(u.NombreCompleto, u.CongregacionNombre)
	// Output: Perez Luis Talar
}

// ExampleUserMessage shows the text a failed step puts in front of the member.
func ExampleUserMessage() {
	fmt.Println(cuenta.UserMessage(cuenta.ErrInvalidPin))
	// Output: PIN inválido o expirado.
}
