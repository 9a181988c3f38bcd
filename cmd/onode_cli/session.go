package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/felixhuettner/ceph/core/onode"
	"github.com/felixhuettner/ceph/core/onode/manager"
	"github.com/felixhuettner/ceph/core/transaction"
)

const defaultListLimit = 100

var errExit = errors.New("exit requested")

// session runs CLI commands, one transaction per command.
type session struct {
	txns   *transaction.Manager
	onodes *manager.OnodeManager
	out    io.Writer
	logger *zap.Logger
}

// exec runs a single command. It returns errExit for "exit"/"quit".
func (s *session) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command provided")
	}

	command := strings.ToLower(args[0])
	switch command {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("create requires at least one object id")
		}
		oids, err := parseObjectIDs(args[1:])
		if err != nil {
			return err
		}
		return s.inTxn(ctx, func(txn *transaction.Transaction) error {
			return s.create(ctx, txn, oids)
		})
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("get requires an object id")
		}
		oid, err := onode.ParseObjectID(args[1])
		if err != nil {
			return err
		}
		return s.inTxn(ctx, func(txn *transaction.Transaction) error {
			o, err := s.onodes.Get(ctx, txn, oid)
			if err != nil {
				return err
			}
			printOnode(s.out, o)
			return nil
		})
	case "exists":
		if len(args) != 2 {
			return fmt.Errorf("exists requires an object id")
		}
		oid, err := onode.ParseObjectID(args[1])
		if err != nil {
			return err
		}
		return s.inTxn(ctx, func(txn *transaction.Transaction) error {
			found, err := s.onodes.Contains(ctx, txn, oid)
			if err != nil {
				return err
			}
			fmt.Fprintln(s.out, found)
			return nil
		})
	case "set-size":
		if len(args) != 3 {
			return fmt.Errorf("set-size requires an object id and a size")
		}
		oid, err := onode.ParseObjectID(args[1])
		if err != nil {
			return err
		}
		size, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", args[2], err)
		}
		return s.inTxn(ctx, func(txn *transaction.Transaction) error {
			return s.setSize(ctx, txn, oid, size)
		})
	case "rm":
		if len(args) != 2 {
			return fmt.Errorf("rm requires an object id")
		}
		oid, err := onode.ParseObjectID(args[1])
		if err != nil {
			return err
		}
		return s.inTxn(ctx, func(txn *transaction.Transaction) error {
			o, err := s.onodes.Get(ctx, txn, oid)
			if err != nil {
				return err
			}
			if err := s.onodes.Erase(ctx, txn, o); err != nil {
				return err
			}
			if err := s.onodes.WriteDirty(ctx, txn, []*onode.Onode{o}); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "removed %s\n", oid)
			return nil
		})
	case "ls":
		start, end, limit, err := parseListArgs(args[1:])
		if err != nil {
			return err
		}
		return s.inTxn(ctx, func(txn *transaction.Transaction) error {
			res, err := s.onodes.List(ctx, txn, start, end, limit)
			if err != nil {
				return err
			}
			for _, k := range res.Keys {
				fmt.Fprintln(s.out, k)
			}
			fmt.Fprintf(s.out, "next: %s\n", res.Next)
			return nil
		})
	case "help":
		printHelp(s.out)
		return nil
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command %q, type 'help' for a list of commands", command)
	}
}

// inTxn commits when fn succeeds and aborts otherwise.
func (s *session) inTxn(ctx context.Context, fn func(txn *transaction.Transaction) error) error {
	txn, err := s.txns.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(txn); err != nil {
		if abortErr := s.txns.Abort(txn); abortErr != nil {
			s.logger.Warn("abort failed", zap.Uint64("txn", txn.ID), zap.Error(abortErr))
		}
		return err
	}
	return s.txns.Commit(txn)
}

func (s *session) create(ctx context.Context, txn *transaction.Transaction, oids []onode.ObjectID) error {
	onodes, err := s.onodes.GetOrCreateMany(ctx, txn, oids)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, o := range onodes {
		if !o.Created() {
			fmt.Fprintf(s.out, "exists  %s\n", o.ID())
			continue
		}
		l, err := o.MutableLayout(txn)
		if err != nil {
			return err
		}
		l.Ctime, l.Mtime = now, now
		fmt.Fprintf(s.out, "created %s\n", o.ID())
	}
	return s.onodes.WriteDirty(ctx, txn, onodes)
}

func (s *session) setSize(ctx context.Context, txn *transaction.Transaction, oid onode.ObjectID, size uint64) error {
	o, err := s.onodes.Get(ctx, txn, oid)
	if err != nil {
		return err
	}
	l, err := o.MutableLayout(txn)
	if err != nil {
		return err
	}
	l.Size = size
	l.Mtime = time.Now().Unix()
	return s.onodes.WriteDirty(ctx, txn, []*onode.Onode{o})
}

func parseObjectIDs(args []string) ([]onode.ObjectID, error) {
	oids := make([]onode.ObjectID, 0, len(args))
	for _, a := range args {
		oid, err := onode.ParseObjectID(a)
		if err != nil {
			return nil, err
		}
		oids = append(oids, oid)
	}
	return oids, nil
}

func parseListArgs(args []string) (start, end onode.ObjectID, limit uint64, err error) {
	start, end, limit = onode.MinObjectID(), onode.MaxObjectID(), defaultListLimit
	if len(args) > 3 {
		return start, end, 0, fmt.Errorf("ls takes at most [start] [end] [limit]")
	}
	if len(args) > 0 {
		if start, err = onode.ParseObjectID(args[0]); err != nil {
			return start, end, 0, err
		}
	}
	if len(args) > 1 {
		if end, err = onode.ParseObjectID(args[1]); err != nil {
			return start, end, 0, err
		}
	}
	if len(args) > 2 {
		if limit, err = strconv.ParseUint(args[2], 10, 64); err != nil {
			return start, end, 0, fmt.Errorf("invalid limit %q: %w", args[2], err)
		}
	}
	return start, end, limit, nil
}

func printOnode(w io.Writer, o *onode.Onode) {
	l := o.Layout()
	fmt.Fprintf(w, "oid:   %s\n", o.ID())
	fmt.Fprintf(w, "size:  %d\n", l.Size)
	fmt.Fprintf(w, "mtime: %s\n", time.Unix(l.Mtime, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "ctime: %s\n", time.Unix(l.Ctime, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "oi:    %d bytes\n", l.OIAttrLen)
	fmt.Fprintf(w, "ss:    %d bytes\n", l.SSAttrLen)
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  create <oid>...")
	fmt.Fprintln(w, "  get <oid>")
	fmt.Fprintln(w, "  exists <oid>")
	fmt.Fprintln(w, "  set-size <oid> <size>")
	fmt.Fprintln(w, "  rm <oid>")
	fmt.Fprintln(w, "  ls [start] [end] [limit]")
	fmt.Fprintln(w, "  help")
	fmt.Fprintln(w, "  exit / quit")
	fmt.Fprintln(w, "An <oid> is shard:pool:hash:ns/name@snap.gen, ns/name, MIN or MAX.")
	fmt.Fprintln(w, "The namespace ends at the first '/'; MAX is a listing bound and cannot be created.")
}
