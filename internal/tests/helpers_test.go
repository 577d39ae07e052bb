package tests

import "context"

func ctx() context.Context {
	return context.Background()
}
