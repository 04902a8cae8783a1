package identity

import "context"

// Pager はユーザー一覧を1ページずつ取り出す遅延イテレータ。
// 再帰的な自己呼び出しではなく、呼び出し元が必要な分だけ
// Nextを呼んでページを引き出す。Resetで先頭から再開できる。
type Pager struct {
	resolver Resolver
	pageSize int
	token    string
	started  bool
	done     bool
}

// NewPager はPagerの新しいインスタンスを生成する。
// pageSizeが0以下の場合はデフォルト値1000を使用する。
func NewPager(resolver Resolver, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Pager{resolver: resolver, pageSize: pageSize}
}

// Next は次のページを返す。全ページを読み終えた後はnilを返す。
// エラーが返った場合、同じページは次のNext呼び出しで再試行される。
func (p *Pager) Next(ctx context.Context) (*UserPage, error) {
	if p.done {
		return nil, nil
	}

	page, err := p.resolver.ListUsers(ctx, p.token, p.pageSize)
	if err != nil {
		return nil, err
	}

	p.started = true
	p.token = page.NextPageToken
	if page.NextPageToken == "" {
		p.done = true
	}
	return page, nil
}

// Reset はイテレータを先頭ページに巻き戻す。
func (p *Pager) Reset() {
	p.token = ""
	p.started = false
	p.done = false
}
