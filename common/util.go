package common

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"syscall"
	"time"
)

type onCancel func()
type onSignal func(os.Signal)

// TerminateIf watches ctx and the usual termination signals, invoking the
// matching callback once whichever fires first.
func TerminateIf(ctx context.Context, onCancel onCancel, onSignal onSignal) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGILL, syscall.SIGSYS,
		syscall.SIGTERM, syscall.SIGTRAP, syscall.SIGQUIT, syscall.SIGABRT)
	go func() {
		for {
			select {
			case <-ctx.Done():
				onCancel()
				return
			case s := <-sig:
				onSignal(s)
				return
			default:
				time.Sleep(time.Millisecond * 10)
			}
		}
	}()
}

func Stringify(v interface{}) string {
	s := "\n" + reflect.TypeOf(v).Name()
	for i := 0; i < reflect.TypeOf(v).NumField(); i++ {
		switch reflect.ValueOf(v).Field(i).Kind() {
		case reflect.Struct, reflect.Interface:
			s += Stringify(reflect.ValueOf(v).Field(i).Interface())
		default:
			s += fmt.Sprintf("\n\t%s: %v", reflect.TypeOf(v).Field(i).Name,
				reflect.ValueOf(v).Field(i).Interface())
		}
	}
	return s
}
