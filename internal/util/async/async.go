package async

import (
	"context"
	"errors"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes tasks concurrently, at most limit at a time
// (limit <= 0 means unbounded), and waits for all of them.
//
// Failures are collected and returned joined, each prefixed with its task name.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "web1", Func: upWeb1},
//	    {Name: "db1", Func: upDB1},
//	}
//	if err := RunParallel(ctx, tasks, 0); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(tasks) {
		limit = len(tasks)
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))
	sem := make(chan struct{}, limit)

	for _, task := range tasks {
		go func() {
			sem <- struct{}{}
			defer func() { <-sem }()
			resultChan <- result{name: task.Name, err: task.Func(ctx)}
		}()
	}

	var errs []error
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
	}

	return errors.Join(errs...)
}
