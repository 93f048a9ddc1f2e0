// Demo: race three simulated replicas and take whichever answers
// first. Run it a few times; the winner varies with the jitter.
package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/baxromumarov/pushx"
)

type replica struct {
	name    string
	latency time.Duration
}

// fetch simulates a replica streaming a handful of rows after its
// network latency, on its own goroutine.
func fetch(r replica) pushx.Source[string] {
	return func(sink pushx.Sink[string]) {
		stop := make(chan struct{})
		sink.OnSubscribe(pushx.CancelFunc(func() {
			close(stop)
			logrus.WithField("replica", r.name).Info("subscription canceled")
		}))

		go func() {
			select {
			case <-stop:
				return
			case <-time.After(r.latency):
			}
			for i := 1; i <= 3; i++ {
				select {
				case <-stop:
					return
				default:
					sink.OnNext(fmt.Sprintf("%s: row %d", r.name, i))
				}
			}
			sink.OnComplete()
		}()
	}
}

func main() {
	logrus.SetLevel(logrus.InfoLevel)

	replicas := []replica{
		{name: "us-east", latency: 30*time.Millisecond + jitter()},
		{name: "eu-west", latency: 30*time.Millisecond + jitter()},
		{name: "ap-south", latency: 30*time.Millisecond + jitter()},
	}
	for _, r := range replicas {
		logrus.WithFields(logrus.Fields{
			"replica": r.name,
			"latency": r.latency,
		}).Info("starting")
	}

	sources := lo.Map(replicas, func(r replica, _ int) pushx.Source[string] {
		return fetch(r)
	})

	done := make(chan struct{})
	pushx.Race(sources...).Subscribe(pushx.SinkFuncs[string]{
		OnNext: func(row string) {
			logrus.WithField("row", row).Info("received")
		},
		OnError: func(err error) {
			logrus.WithError(err).Error("race failed")
			close(done)
		},
		OnComplete: func() {
			logrus.Info("winner finished")
			close(done)
		},
	})

	<-done
}

func jitter() time.Duration {
	return time.Duration(rand.Intn(40)) * time.Millisecond
}
