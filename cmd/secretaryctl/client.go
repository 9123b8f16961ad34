package main

import (
	"fmt"
	"io"
	"net/http"
)

func runHealth(apiURL string, out io.Writer) error {
	resp, err := http.Get(apiURL + "/health")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	_, err = io.Copy(out, resp.Body)
	return err
}

func runTrigger(apiURL, job string, out io.Writer) error {
	if job == "" {
		return fmt.Errorf("job name cannot be empty")
	}
	resp, err := http.Post(apiURL+"/tasks/"+job, "application/json", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}
	_, err = io.Copy(out, resp.Body)
	return err
}
